package diskauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diskrelay/diskrelay/internal/models"
)

// CredentialStore persists the per-user row of encrypted tokens.
// Token mutation always flows through the lifecycle service.
type CredentialStore interface {
	Ensure(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (models.Credential, error)
	SetInsertToken(ctx context.Context, userID int64, ciphertext string, lifetimeSeconds int64) error
	SetAccessTokens(ctx context.Context, userID int64, access, tokenType string, expiresIn int64, refresh string) error
	ClearInsertToken(ctx context.Context, userID int64) error
	ClearAll(ctx context.Context, userID int64) error
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Ensure(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO disk_credentials (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure credential row: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, userID int64) (models.Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id,
		       COALESCE(access_token, ''),
		       COALESCE(access_token_type, ''),
		       COALESCE(access_token_expires_in, 0),
		       COALESCE(refresh_token, ''),
		       COALESCE(insert_token, ''),
		       COALESCE(insert_token_expires_in, 0)
		FROM disk_credentials
		WHERE user_id = $1`, userID)

	var cred models.Credential
	err := row.Scan(
		&cred.UserID,
		&cred.AccessToken,
		&cred.AccessTokenType,
		&cred.AccessTokenExpiresIn,
		&cred.RefreshToken,
		&cred.InsertToken,
		&cred.InsertTokenExpiresIn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Credential{}, ErrMissingData
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (s *PGStore) SetInsertToken(ctx context.Context, userID int64, ciphertext string, lifetimeSeconds int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE disk_credentials
		SET insert_token = $2,
		    insert_token_expires_in = $3,
		    updated_at = now()
		WHERE user_id = $1`, userID, ciphertext, lifetimeSeconds)
	if err != nil {
		return fmt.Errorf("set insert token: %w", err)
	}
	return nil
}

// SetAccessTokens stores a fresh grant and clears the insert token in
// the same statement so no reader sees both halves live.
func (s *PGStore) SetAccessTokens(ctx context.Context, userID int64, access, tokenType string, expiresIn int64, refresh string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE disk_credentials
		SET access_token = $2,
		    access_token_type = $3,
		    access_token_expires_in = $4,
		    refresh_token = $5,
		    insert_token = NULL,
		    insert_token_expires_in = NULL,
		    updated_at = now()
		WHERE user_id = $1`, userID, access, tokenType, expiresIn, refresh)
	if err != nil {
		return fmt.Errorf("set access tokens: %w", err)
	}
	return nil
}

func (s *PGStore) ClearInsertToken(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE disk_credentials
		SET insert_token = NULL,
		    insert_token_expires_in = NULL,
		    updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear insert token: %w", err)
	}
	return nil
}

// ClearAll empties every token field but keeps the row.
func (s *PGStore) ClearAll(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE disk_credentials
		SET access_token = NULL,
		    access_token_type = NULL,
		    access_token_expires_in = NULL,
		    refresh_token = NULL,
		    insert_token = NULL,
		    insert_token_expires_in = NULL,
		    updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
