package upload

import (
	"context"
	"log/slog"
)

// Messenger is the outbound surface progress reporting needs.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}

// Reporter edits one status message in place instead of sending a new
// message per poll tick. Identical text is never re-sent.
type Reporter struct {
	log       *slog.Logger
	messenger Messenger
	chatID    int64
	messageID int
	lastText  string
}

func NewReporter(log *slog.Logger, messenger Messenger, chatID int64) *Reporter {
	return &Reporter{
		log:       log.With(slog.String("service", "upload")),
		messenger: messenger,
		chatID:    chatID,
	}
}

func (r *Reporter) Update(ctx context.Context, text string) {
	if text == "" || text == r.lastText {
		return
	}
	if r.messageID == 0 {
		id, err := r.messenger.SendText(ctx, r.chatID, text)
		if err != nil {
			r.log.Warn("send progress message failed", slog.Any("error", err))
			return
		}
		r.messageID = id
		r.lastText = text
		return
	}
	if err := r.messenger.EditText(ctx, r.chatID, r.messageID, text); err != nil {
		r.log.Warn("edit progress message failed", slog.Any("error", err))
		return
	}
	r.lastText = text
}

// MessageID is the id of the status message, zero before first send.
func (r *Reporter) MessageID() int { return r.messageID }
