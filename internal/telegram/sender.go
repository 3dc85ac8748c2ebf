// Package telegram adapts the bot API client to the outbound surface
// the handlers use. All sends are fire-and-forget beyond the API's own
// success flag.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/diskrelay/diskrelay/internal/bot"
)

type Sender struct {
	log *slog.Logger
	api *tgbotapi.BotAPI
}

func NewSender(log *slog.Logger, botToken string) (*Sender, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init bot api: %w", err)
	}
	return &Sender{
		log: log.With(slog.String("service", "telegram")),
		api: api,
	}, nil
}

// Username of the bot account, used to strip @mentions from commands.
func (s *Sender) Username() string { return s.api.Self.UserName }

func (s *Sender) SendText(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// SendHTML sends rich-formatted text with web previews disabled.
func (s *Sender) SendHTML(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send html message: %w", err)
	}
	return sent.MessageID, nil
}

func (s *Sender) SendPhoto(_ context.Context, chatID int64, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := s.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendButtons sends text with an inline keyboard, two buttons per row.
func (s *Sender) SendButtons(_ context.Context, chatID int64, text string, buttons []bot.Button) (int, error) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(buttons); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(buttons[i].Label, buttons[i].Data),
		}
		if i+1 < len(buttons) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(buttons[i+1].Label, buttons[i+1].Data))
		}
		rows = append(rows, row)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send buttons: %w", err)
	}
	return sent.MessageID, nil
}

func (s *Sender) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := s.api.Send(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (s *Sender) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendChatAction shows a typing/uploading indicator.
func (s *Sender) SendChatAction(_ context.Context, chatID int64, action string) error {
	if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges an inline-button press.
func (s *Sender) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := s.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// FileURL resolves an attachment file id to a downloadable URL.
func (s *Sender) FileURL(_ context.Context, fileID string) (string, error) {
	url, err := s.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	return url, nil
}

// EnsureWebhook points Telegram at the bot's webhook endpoint.
func (s *Sender) EnsureWebhook(webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := s.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	s.log.Info("webhook registered")
	return nil
}
