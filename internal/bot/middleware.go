package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diskrelay/diskrelay/internal/diskauth"
)

// Check runs before a handler. It either enriches the request context
// or short-circuits by returning a Halt carrying the user-facing
// reply. Checks compose as an ordered list, not as wrappers.
type Check func(ctx context.Context, rc *RequestContext) error

// Halt stops the pipeline with a specific response instead of an
// operator-visible failure.
type Halt struct {
	Message string
}

func (h *Halt) Error() string { return "bot: halted: " + h.Message }

func runChecks(ctx context.Context, rc *RequestContext, checks []Check) error {
	for _, check := range checks {
		if err := check(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGuest creates user, chat, and settings rows on first contact
// and loads them into the context.
func RegisterGuest(log *slog.Logger, store UserDirectory) Check {
	return func(ctx context.Context, rc *RequestContext) error {
		user, chat, err := store.RegisterGuest(ctx, rc.Event.UserID, rc.Event.Language, rc.Event.ChatID, rc.Event.ChatType)
		if err != nil {
			return fmt.Errorf("register guest: %w", err)
		}
		settings, err := store.Settings(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		rc.User = user
		rc.Chat = chat
		rc.Settings = settings
		log.Debug("guest resolved",
			slog.Int64("user_id", user.ID), slog.Int64("chat_id", chat.ID))
		return nil
	}
}

// RequireAccessToken loads a usable access token into the context or
// halts with a grant prompt.
func RequireAccessToken(auth Authorizer) Check {
	return func(ctx context.Context, rc *RequestContext) error {
		token, err := auth.AccessToken(ctx, rc.User.ID)
		if errors.Is(err, diskauth.ErrNoAccessToken) {
			return &Halt{Message: "I don't have access to your Yandex.Disk. Run /grant_access first."}
		}
		if err != nil {
			return fmt.Errorf("load access token: %w", err)
		}
		rc.AccessToken = token
		return nil
	}
}
