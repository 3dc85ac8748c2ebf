// Package bot holds the conversation core: inbound event
// normalization, the command registry, the dispatcher, and the command
// handlers.
package bot

import (
	"github.com/diskrelay/diskrelay/internal/models"
)

// Event tags describe what an inbound event carries. Disposable and
// subscribed handler registrations trigger on these.
const (
	EventMessage    = "message"
	EventBotCommand = "bot_command"
	EventText       = "text"
	EventPhoto      = "photo"
	EventFile       = "file"
	EventAudio      = "audio"
	EventVideo      = "video"
	EventVoice      = "voice"
	EventURL        = "url"
)

// Entity marks a typed span inside the message text, offsets in
// UTF-16 code units as the platform counts them.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string
}

// Attachment is the zero-or-one file payload of a message.
type Attachment struct {
	Kind     AttachmentKind
	FileID   string
	FileName string
	MimeType string
	FileSize int64
}

// Callback is an inline-button press with its bounded opaque payload.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Event is the normalized inbound event, built once per update and
// immutable afterwards.
type Event struct {
	UpdateID  int
	MessageID int
	Date      int64

	UserID   int64
	Language string
	ChatID   int64
	ChatType models.ChatType

	Text       string
	Entities   []Entity
	Attachment *Attachment
	URL        string
	Command    string
	Callback   *Callback

	Tags []string
}

func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
