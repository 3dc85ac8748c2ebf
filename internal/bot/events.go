package bot

import (
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/diskrelay/diskrelay/internal/models"
)

// NewEvent normalizes one update into an Event. The second return is
// false for update types the bot does not consume (edits, channel
// posts, inline queries).
func NewEvent(update tgbotapi.Update, botUsername string) (Event, bool) {
	if update.CallbackQuery != nil {
		return newCallbackEvent(update)
	}
	if update.Message != nil {
		return newMessageEvent(update, botUsername)
	}
	return Event{}, false
}

func newCallbackEvent(update tgbotapi.Update) (Event, bool) {
	cq := update.CallbackQuery
	if cq.From == nil || cq.Message == nil {
		return Event{}, false
	}
	ev := Event{
		UpdateID: update.UpdateID,
		UserID:   cq.From.ID,
		Language: cq.From.LanguageCode,
		ChatID:   cq.Message.Chat.ID,
		ChatType: models.ParseChatType(cq.Message.Chat.Type),
		Callback: &Callback{
			ID:        cq.ID,
			Data:      cq.Data,
			MessageID: cq.Message.MessageID,
		},
		Tags: []string{EventMessage},
	}
	return ev, true
}

func newMessageEvent(update tgbotapi.Update, botUsername string) (Event, bool) {
	msg := update.Message
	if msg.From == nil || msg.Chat == nil {
		return Event{}, false
	}

	text := msg.Text
	entities := msg.Entities
	if text == "" && msg.Caption != "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	ev := Event{
		UpdateID:   update.UpdateID,
		MessageID:  msg.MessageID,
		Date:       int64(msg.Date),
		UserID:     msg.From.ID,
		Language:   msg.From.LanguageCode,
		ChatID:     msg.Chat.ID,
		ChatType:   models.ParseChatType(msg.Chat.Type),
		Text:       text,
		Attachment: extractAttachment(msg),
	}

	for _, entity := range entities {
		ev.Entities = append(ev.Entities, Entity{
			Type:   entity.Type,
			Offset: entity.Offset,
			Length: entity.Length,
			URL:    entity.URL,
		})
		switch entity.Type {
		case "bot_command":
			if entity.Offset == 0 && ev.Command == "" {
				ev.Command = normalizeCommand(entityValue(text, entity.Offset, entity.Length), botUsername)
			}
		case "url":
			if ev.URL == "" {
				ev.URL = entityValue(text, entity.Offset, entity.Length)
			}
		case "text_link":
			if ev.URL == "" {
				ev.URL = entity.URL
			}
		}
	}

	ev.Tags = detectTags(ev)
	return ev, true
}

func detectTags(ev Event) []string {
	tags := []string{EventMessage}
	if ev.Command != "" {
		tags = append(tags, EventBotCommand)
	}
	if ev.Text != "" {
		tags = append(tags, EventText)
	}
	if ev.URL != "" {
		tags = append(tags, EventURL)
	}
	if ev.Attachment != nil {
		tags = append(tags, attachmentSpecs[ev.Attachment.Kind].event)
	}
	return tags
}

func extractAttachment(msg *tgbotapi.Message) *Attachment {
	switch {
	case len(msg.Photo) > 0:
		// Sizes arrive smallest first; take the biggest rendition.
		best := msg.Photo[len(msg.Photo)-1]
		return &Attachment{
			Kind:     KindPhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
		}
	case msg.Document != nil:
		return &Attachment{
			Kind:     KindFile,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			FileSize: int64(msg.Document.FileSize),
		}
	case msg.Audio != nil:
		return &Attachment{
			Kind:     KindAudio,
			FileID:   msg.Audio.FileID,
			FileName: msg.Audio.FileName,
			MimeType: msg.Audio.MimeType,
			FileSize: int64(msg.Audio.FileSize),
		}
	case msg.Video != nil:
		return &Attachment{
			Kind:     KindVideo,
			FileID:   msg.Video.FileID,
			FileName: msg.Video.FileName,
			MimeType: msg.Video.MimeType,
			FileSize: int64(msg.Video.FileSize),
		}
	case msg.Voice != nil:
		return &Attachment{
			Kind:     KindVoice,
			FileID:   msg.Voice.FileID,
			MimeType: msg.Voice.MimeType,
			FileSize: int64(msg.Voice.FileSize),
		}
	default:
		return nil
	}
}

// entityValue slices text by UTF-16 offsets, which is how the platform
// counts entity positions.
func entityValue(text string, offset, length int) string {
	encoded := utf16.Encode([]rune(text))
	if offset < 0 || offset+length > len(encoded) {
		return ""
	}
	return string(utf16.Decode(encoded[offset : offset+length]))
}

// normalizeCommand lowercases and strips an @botname suffix, so
// "/HELP@MyBot" routes like "/help".
func normalizeCommand(raw, botUsername string) string {
	cmd := strings.ToLower(strings.TrimSpace(raw))
	if at := strings.Index(cmd, "@"); at > 0 {
		mention := cmd[at+1:]
		if botUsername == "" || strings.EqualFold(mention, botUsername) {
			cmd = cmd[:at]
		}
	}
	return cmd
}

// StripCommand removes a leading command token from free text. Under
// a disposable route the whole message is the payload and there is
// nothing to strip.
func StripCommand(text, command string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if command != "" && strings.HasPrefix(lower, command) {
		rest := trimmed[len(command):]
		// Allow an @botname mention between command and arguments.
		if strings.HasPrefix(rest, "@") {
			if sp := strings.IndexAny(rest, " \n\t"); sp >= 0 {
				rest = rest[sp:]
			} else {
				rest = ""
			}
		}
		return strings.TrimSpace(rest)
	}
	return trimmed
}
