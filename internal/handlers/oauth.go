package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/diskrelay/diskrelay/internal/diskauth"
)

// OAuthCallbackPath is registered on the public server and appended to
// the public base URL when building the redirect target.
const OAuthCallbackPath = "/oauth/callback"

const (
	oauthSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Access granted</title></head>
<body>
<h1>Access granted</h1>
<p>You can close this page and return to the Telegram chat.</p>
</body>
</html>`

	oauthDeclinedPage = `<!DOCTYPE html>
<html>
<head><title>Access declined</title></head>
<body>
<h1>Access declined</h1>
<p>No access was granted. You can close this page. Run /grant_access in the chat to try again.</p>
</body>
</html>`

	oauthFailurePage = `<!DOCTYPE html>
<html>
<head><title>Something went wrong</title></head>
<body>
<h1>Something went wrong</h1>
<p>The authorization could not be completed. Run /grant_access in the chat to get a fresh link.</p>
</body>
</html>`
)

// HandshakeCompleter finishes or aborts a pending authorization.
type HandshakeCompleter interface {
	CompleteHandshake(ctx context.Context, state, code string) error
	AbortHandshake(ctx context.Context, state string) error
}

// OAuthHandler terminates the provider's redirect. Every failure mode
// renders the same page so the response never tells an attacker which
// part of the state or token verification tripped.
type OAuthHandler struct {
	auth   HandshakeCompleter
	logger *slog.Logger
}

func NewOAuthHandler(log *slog.Logger, auth HandshakeCompleter) *OAuthHandler {
	return &OAuthHandler{
		auth:   auth,
		logger: log.With(slog.String("handler", "oauth")),
	}
}

func (h *OAuthHandler) Register(e *echo.Echo) {
	e.GET(OAuthCallbackPath, h.HandleCallback)
}

func (h *OAuthHandler) HandleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	oauthErr := c.QueryParam("error")

	if oauthErr != "" {
		if err := h.auth.AbortHandshake(ctx, state); err != nil {
			h.logger.Warn("handshake abort rejected", slog.Any("error", err))
			return c.HTML(http.StatusBadRequest, oauthFailurePage)
		}
		h.logger.Info("handshake declined",
			slog.String("error", oauthErr),
			slog.String("description", c.QueryParam("error_description")))
		return c.HTML(http.StatusOK, oauthDeclinedPage)
	}

	if code == "" {
		return c.HTML(http.StatusBadRequest, oauthFailurePage)
	}

	if err := h.auth.CompleteHandshake(ctx, state, code); err != nil {
		var exchangeErr *diskauth.ExchangeError
		if errors.As(err, &exchangeErr) {
			h.logger.Error("token exchange failed",
				slog.String("code", exchangeErr.Code),
				slog.String("description", exchangeErr.Description))
		} else {
			h.logger.Warn("handshake completion rejected", slog.Any("error", err))
		}
		return c.HTML(http.StatusBadRequest, oauthFailurePage)
	}

	return c.HTML(http.StatusOK, oauthSuccessPage)
}
