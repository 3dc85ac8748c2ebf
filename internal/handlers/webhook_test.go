package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	updates []tgbotapi.Update
}

func (p *recordingProcessor) HandleUpdate(_ context.Context, update tgbotapi.Update) {
	p.updates = append(p.updates, update)
}

func newWebhookServer(processor UpdateProcessor) *echo.Echo {
	e := echo.New()
	NewTelegramWebhookHandler(slog.Default(), processor, "s3cret").Register(e)
	return e
}

func TestWebhookDeliversUpdate(t *testing.T) {
	processor := &recordingProcessor{}
	e := newWebhookServer(processor)

	body := `{"update_id":42,"message":{"message_id":1,"date":1700000000,"text":"hi","chat":{"id":10,"type":"private"},"from":{"id":1}}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.updates, 1)
	assert.Equal(t, 42, processor.updates[0].UpdateID)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	processor := &recordingProcessor{}
	e := newWebhookServer(processor)

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/guess", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, processor.updates)
}

func TestWebhookSwallowsGarbagePayload(t *testing.T) {
	processor := &recordingProcessor{}
	e := newWebhookServer(processor)

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// Anything but 200 makes Telegram redeliver forever.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, processor.updates)
}
