// Package users persists users, chats, and per-user settings.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diskrelay/diskrelay/internal/models"
)

var ErrNotFound = errors.New("users: not found")

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool

	defaultFolder string
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool, defaultFolder string) *Store {
	return &Store{
		log:           log.With(slog.String("service", "users")),
		pool:          pool,
		defaultFolder: defaultFolder,
	}
}

// RegisterGuest creates the user, chat, and settings rows on first
// contact in one transaction. Re-registering an existing pair is a
// no-op that returns the stored rows.
func (s *Store) RegisterGuest(ctx context.Context, telegramUserID int64, language string, telegramChatID int64, chatType models.ChatType) (models.User, models.Chat, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, models.Chat{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if language == "" {
		language = "en"
	}

	var user models.User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (telegram_id, language)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id
		RETURNING id, telegram_id, language, created_at`,
		telegramUserID, language,
	).Scan(&user.ID, &user.TelegramID, &user.Language, &user.CreatedAt)
	if err != nil {
		return models.User{}, models.Chat{}, fmt.Errorf("upsert user: %w", err)
	}

	var chat models.Chat
	var rawType string
	err = tx.QueryRow(ctx, `
		INSERT INTO chats (telegram_id, type, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE SET type = EXCLUDED.type
		RETURNING id, telegram_id, type, user_id`,
		telegramChatID, string(chatType), user.ID,
	).Scan(&chat.ID, &chat.TelegramID, &rawType, &chat.UserID)
	if err != nil {
		return models.User{}, models.Chat{}, fmt.Errorf("upsert chat: %w", err)
	}
	chat.Type = models.ParseChatType(rawType)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_settings (user_id, default_upload_folder)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		user.ID, s.defaultFolder)
	if err != nil {
		return models.User{}, models.Chat{}, fmt.Errorf("insert settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, models.Chat{}, fmt.Errorf("commit: %w", err)
	}
	return user, chat, nil
}

func (s *Store) GetByTelegramID(ctx context.Context, telegramUserID int64) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, language, created_at
		FROM users WHERE telegram_id = $1`, telegramUserID,
	).Scan(&user.ID, &user.TelegramID, &user.Language, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// PrivateChat returns the user's single private chat. The partial
// unique index on chats guarantees at most one row.
func (s *Store) PrivateChat(ctx context.Context, userID int64) (models.Chat, error) {
	var chat models.Chat
	var rawType string
	err := s.pool.QueryRow(ctx, `
		SELECT id, telegram_id, type, user_id
		FROM chats WHERE user_id = $1 AND type = 'private'`, userID,
	).Scan(&chat.ID, &chat.TelegramID, &rawType, &chat.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("get private chat: %w", err)
	}
	chat.Type = models.ParseChatType(rawType)
	return chat, nil
}

func (s *Store) Settings(ctx context.Context, userID int64) (models.UserSettings, error) {
	var settings models.UserSettings
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, default_upload_folder
		FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&settings.UserID, &settings.DefaultUploadFolder)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UserSettings{UserID: userID, DefaultUploadFolder: s.defaultFolder}, nil
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SetDefaultUploadFolder(ctx context.Context, userID int64, folder string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, default_upload_folder)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET default_upload_folder = EXCLUDED.default_upload_folder`,
		userID, folder)
	if err != nil {
		return fmt.Errorf("set default upload folder: %w", err)
	}
	return nil
}
