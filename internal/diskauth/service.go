// Package diskauth owns the Yandex OAuth handshake and the encrypted
// credential lifecycle for one user.
package diskauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/diskrelay/diskrelay/internal/models"
	"github.com/diskrelay/diskrelay/internal/secrets"
)

// TokenExchanger is the remote half of the handshake.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuth2Exchanger adapts *oauth2.Config to TokenExchanger.
type OAuth2Exchanger struct {
	cfg *oauth2.Config
}

func NewOAuth2Exchanger(clientID, clientSecret, authURL, tokenURL, redirectURL string) *OAuth2Exchanger {
	return &OAuth2Exchanger{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}}
}

func (e *OAuth2Exchanger) AuthCodeURL(state string) string {
	return e.cfg.AuthCodeURL(state)
}

func (e *OAuth2Exchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return e.cfg.Exchange(ctx, code)
}

func (e *OAuth2Exchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return e.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

type Service struct {
	log       *slog.Logger
	store     CredentialStore
	codec     *secrets.Codec
	state     *StateCodec
	exchanger TokenExchanger

	insertTokenBytes    int
	insertTokenLifetime time.Duration
}

func NewService(log *slog.Logger, store CredentialStore, codec *secrets.Codec, state *StateCodec, exchanger TokenExchanger, insertTokenBytes int, insertTokenLifetime time.Duration) *Service {
	return &Service{
		log:                 log.With(slog.String("service", "diskauth")),
		store:               store,
		codec:               codec,
		state:               state,
		exchanger:           exchanger,
		insertTokenBytes:    insertTokenBytes,
		insertTokenLifetime: insertTokenLifetime,
	}
}

// BeginHandshake is a no-op when a usable grant already exists, tries
// a silent refresh next, and only then starts a fresh handshake with a
// new insert token and consent URL.
func (s *Service) BeginHandshake(ctx context.Context, userID int64) (HandshakeResult, error) {
	if err := s.store.Ensure(ctx, userID); err != nil {
		return HandshakeResult{}, err
	}
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		return HandshakeResult{}, err
	}

	if _, err := s.decryptAccess(cred); err == nil {
		return HandshakeResult{Status: StatusAlreadyGranted}, nil
	}

	if err := s.Refresh(ctx, userID); err == nil {
		return HandshakeResult{Status: StatusRefreshed}, nil
	}

	if err := s.store.ClearAll(ctx, userID); err != nil {
		return HandshakeResult{}, err
	}

	insertToken, err := s.newInsertToken()
	if err != nil {
		return HandshakeResult{}, err
	}
	ciphertext, err := s.codec.Encrypt(insertToken)
	if err != nil {
		return HandshakeResult{}, err
	}
	lifetime := int64(s.insertTokenLifetime / time.Second)
	if err := s.store.SetInsertToken(ctx, userID, ciphertext, lifetime); err != nil {
		return HandshakeResult{}, err
	}

	state, err := s.state.Encode(userID, insertToken)
	if err != nil {
		return HandshakeResult{}, err
	}

	s.log.Info("handshake started", slog.Int64("user_id", userID))
	return HandshakeResult{
		Status: StatusInsertPending,
		URL:    s.exchanger.AuthCodeURL(state),
		TTL:    s.insertTokenLifetime,
	}, nil
}

// CompleteHandshake verifies the redirected state against the stored
// insert token and exchanges the authorization code for a grant. The
// insert-token equality check is the single authorization gate.
func (s *Service) CompleteHandshake(ctx context.Context, state, code string) error {
	userID, err := s.verifyState(ctx, state)
	if err != nil {
		return err
	}

	tok, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		// The code is spent either way; only the insert token is
		// cleared so an existing grant survives a failed re-auth.
		if clearErr := s.store.ClearInsertToken(ctx, userID); clearErr != nil {
			s.log.Error("clear insert token after failed exchange",
				slog.Int64("user_id", userID), slog.Any("error", clearErr))
		}
		return wrapExchangeError(err)
	}

	if err := s.storeGrant(ctx, userID, tok); err != nil {
		return err
	}
	s.log.Info("handshake completed", slog.Int64("user_id", userID))
	return nil
}

// AbortHandshake runs the same verification path as CompleteHandshake
// but only clears the insert token. Used when the consent page
// redirects back with a user-denied error.
func (s *Service) AbortHandshake(ctx context.Context, state string) error {
	userID, err := s.verifyState(ctx, state)
	if err != nil {
		return err
	}
	if err := s.store.ClearInsertToken(ctx, userID); err != nil {
		return err
	}
	s.log.Info("handshake aborted", slog.Int64("user_id", userID))
	return nil
}

func (s *Service) verifyState(ctx context.Context, state string) (int64, error) {
	userID, presented, err := s.state.Decode(state)
	if err != nil {
		return 0, err
	}
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !cred.HasInsertToken() {
		return 0, ErrExpiredInsertToken
	}
	stored, err := s.codec.DecryptWithTTL(cred.InsertToken, time.Duration(cred.InsertTokenExpiresIn)*time.Second)
	if err != nil {
		return 0, ErrExpiredInsertToken
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return 0, ErrInvalidInsertToken
	}
	return userID, nil
}

// Refresh exchanges the stored refresh token for a new grant. State is
// only mutated on success.
func (s *Service) Refresh(ctx context.Context, userID int64) error {
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !cred.HasRefreshToken() {
		return ErrNoRefreshToken
	}
	refreshToken, err := s.codec.Decrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("decrypt refresh token: %w", err)
	}
	tok, err := s.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		return wrapExchangeError(err)
	}
	if err := s.storeGrant(ctx, userID, tok); err != nil {
		return err
	}
	s.log.Info("grant refreshed", slog.Int64("user_id", userID))
	return nil
}

// Revoke clears all three token fields but keeps the row.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	if err := s.store.ClearAll(ctx, userID); err != nil {
		return err
	}
	s.log.Info("credential revoked", slog.Int64("user_id", userID))
	return nil
}

// AccessToken returns the decrypted access token, refreshing once if
// the stored one is expired or corrupt.
func (s *Service) AccessToken(ctx context.Context, userID int64) (string, error) {
	cred, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrMissingData) {
			return "", ErrNoAccessToken
		}
		return "", err
	}
	if token, err := s.decryptAccess(cred); err == nil {
		return token, nil
	}
	if err := s.Refresh(ctx, userID); err != nil {
		return "", ErrNoAccessToken
	}
	cred, err = s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	token, err := s.decryptAccess(cred)
	if err != nil {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// HasGrant reports whether a usable access token is stored.
func (s *Service) HasGrant(ctx context.Context, userID int64) bool {
	_, err := s.AccessToken(ctx, userID)
	return err == nil
}

func (s *Service) decryptAccess(cred models.Credential) (string, error) {
	if !cred.HasAccessToken() {
		return "", ErrNoAccessToken
	}
	return s.codec.DecryptWithTTL(cred.AccessToken, time.Duration(cred.AccessTokenExpiresIn)*time.Second)
}

func (s *Service) storeGrant(ctx context.Context, userID int64, tok *oauth2.Token) error {
	access, err := s.codec.Encrypt(tok.AccessToken)
	if err != nil {
		return err
	}
	refresh := ""
	if tok.RefreshToken != "" {
		refresh, err = s.codec.Encrypt(tok.RefreshToken)
		if err != nil {
			return err
		}
	}
	expiresIn := int64(0)
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry) / time.Second)
	}
	return s.store.SetAccessTokens(ctx, userID, access, tok.TokenType, expiresIn, refresh)
}

func (s *Service) newInsertToken() (string, error) {
	buf := make([]byte, s.insertTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate insert token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func wrapExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &ExchangeError{
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
			Err:         err,
		}
	}
	return &ExchangeError{Err: err}
}
