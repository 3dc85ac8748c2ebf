package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diskrelay/diskrelay/internal/models"
)

func messageUpdate(text string, entities []tgbotapi.MessageEntity) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			MessageID: 99,
			Date:      1700000000,
			From:      &tgbotapi.User{ID: 1, LanguageCode: "en"},
			Chat:      &tgbotapi.Chat{ID: 10, Type: "private"},
			Text:      text,
			Entities:  entities,
		},
	}
}

func TestNewEventCommand(t *testing.T) {
	update := messageUpdate("/upload_photo My Folder", []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: 13},
	})

	ev, ok := NewEvent(update, "diskrelaybot")
	require.True(t, ok)

	assert.Equal(t, "/upload_photo", ev.Command)
	assert.Equal(t, models.ChatTypePrivate, ev.ChatType)
	assert.True(t, ev.HasTag(EventBotCommand))
	assert.True(t, ev.HasTag(EventText))
}

func TestNewEventCommandWithMention(t *testing.T) {
	update := messageUpdate("/help@diskrelaybot", []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: 18},
	})

	ev, ok := NewEvent(update, "diskrelaybot")
	require.True(t, ok)
	assert.Equal(t, "/help", ev.Command)
}

func TestNewEventURL(t *testing.T) {
	text := "check https://example.com/cat.jpg out"
	update := messageUpdate(text, []tgbotapi.MessageEntity{
		{Type: "url", Offset: 6, Length: 27},
	})

	ev, ok := NewEvent(update, "")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/cat.jpg", ev.URL)
	assert.True(t, ev.HasTag(EventURL))
}

func TestNewEventPhotoUsesCaptionAndLargestSize(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 5,
			Date:      1700000000,
			From:      &tgbotapi.User{ID: 1},
			Chat:      &tgbotapi.Chat{ID: 10, Type: "private"},
			Caption:   "holiday pic",
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", FileSize: 100},
				{FileID: "big", FileSize: 9000},
			},
		},
	}

	ev, ok := NewEvent(update, "")
	require.True(t, ok)
	require.NotNil(t, ev.Attachment)
	assert.Equal(t, KindPhoto, ev.Attachment.Kind)
	assert.Equal(t, "big", ev.Attachment.FileID)
	assert.Equal(t, "holiday pic", ev.Text)
	assert.True(t, ev.HasTag(EventPhoto))
}

func TestNewEventCallback(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 3,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			From: &tgbotapi.User{ID: 1},
			Message: &tgbotapi.Message{
				MessageID: 40,
				Chat:      &tgbotapi.Chat{ID: 10, Type: "private"},
			},
			Data: "2",
		},
	}

	ev, ok := NewEvent(update, "")
	require.True(t, ok)
	require.NotNil(t, ev.Callback)
	assert.Equal(t, "2", ev.Callback.Data)
	assert.Equal(t, 40, ev.Callback.MessageID)
}

func TestNewEventIgnoresUnhandledUpdates(t *testing.T) {
	_, ok := NewEvent(tgbotapi.Update{}, "")
	assert.False(t, ok)

	_, ok = NewEvent(tgbotapi.Update{EditedMessage: &tgbotapi.Message{}}, "")
	assert.False(t, ok)
}

func TestGuessCommandPriority(t *testing.T) {
	photo := Event{Attachment: &Attachment{Kind: KindPhoto}, URL: "https://x/y"}
	cmd, ok := GuessCommand(photo)
	require.True(t, ok)
	assert.Equal(t, CmdUploadPhoto, cmd)

	bareURL := Event{URL: "https://x/y"}
	cmd, ok = GuessCommand(bareURL)
	require.True(t, ok)
	assert.Equal(t, CmdUploadURL, cmd)

	_, ok = GuessCommand(Event{Text: "hello"})
	assert.False(t, ok)
}

func TestStripCommand(t *testing.T) {
	assert.Equal(t, "My Folder", StripCommand("/create_folder My Folder", "/create_folder"))
	assert.Equal(t, "My Folder", StripCommand("/create_folder@bot My Folder", "/create_folder"))
	assert.Equal(t, "plain text", StripCommand("plain text", ""))
	assert.Equal(t, "", StripCommand("/create_folder", "/create_folder"))
}
