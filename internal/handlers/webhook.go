package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
)

// UpdateProcessor consumes one Telegram update. It owns all error
// handling; nothing propagates back to the HTTP layer.
type UpdateProcessor interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// TelegramWebhookHandler receives update deliveries from Telegram.
// The secret path segment is the only authentication; requests with a
// wrong secret get a 404 indistinguishable from an unknown route.
type TelegramWebhookHandler struct {
	processor UpdateProcessor
	secret    string
	logger    *slog.Logger
}

func NewTelegramWebhookHandler(log *slog.Logger, processor UpdateProcessor, secret string) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		processor: processor,
		secret:    secret,
		logger:    log.With(slog.String("handler", "telegram_webhook")),
	}
}

func (h *TelegramWebhookHandler) Register(e *echo.Echo) {
	e.POST("/telegram/webhook/:secret", h.HandleUpdate)
}

// HandleUpdate answers 200 to every authenticated delivery, even when
// the payload is garbage. A non-200 makes Telegram redeliver the same
// update in a loop.
func (h *TelegramWebhookHandler) HandleUpdate(c echo.Context) error {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		h.logger.Warn("undecodable update payload", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	h.processor.HandleUpdate(c.Request().Context(), update)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
