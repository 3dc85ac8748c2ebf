// Package models holds the durable entities shared across services.
package models

import "time"

type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
	ChatTypeUnknown    ChatType = "unknown"
)

func ParseChatType(raw string) ChatType {
	switch ChatType(raw) {
	case ChatTypePrivate, ChatTypeGroup, ChatTypeSupergroup, ChatTypeChannel:
		return ChatType(raw)
	default:
		return ChatTypeUnknown
	}
}

type User struct {
	ID         int64
	TelegramID int64
	Language   string
	CreatedAt  time.Time
}

type Chat struct {
	ID         int64
	TelegramID int64
	Type       ChatType
	UserID     int64
}

type UserSettings struct {
	UserID              int64
	DefaultUploadFolder string
}

// Credential is the single per-user row of encrypted tokens. Token
// fields hold ciphertext; empty string means the secret is cleared.
// ExpiresIn columns bound decryption of the matching ciphertext.
type Credential struct {
	UserID               int64
	AccessToken          string
	AccessTokenType      string
	AccessTokenExpiresIn int64
	RefreshToken         string
	InsertToken          string
	InsertTokenExpiresIn int64
}

func (c Credential) HasAccessToken() bool  { return c.AccessToken != "" }
func (c Credential) HasRefreshToken() bool { return c.RefreshToken != "" }
func (c Credential) HasInsertToken() bool  { return c.InsertToken != "" }
