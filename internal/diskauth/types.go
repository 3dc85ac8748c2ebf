package diskauth

import (
	"errors"
	"time"
)

// HandshakeStatus is the outcome of BeginHandshake.
type HandshakeStatus string

const (
	// StatusAlreadyGranted means a usable access token exists.
	StatusAlreadyGranted HandshakeStatus = "already_granted"
	// StatusRefreshed means the refresh token produced a new grant.
	StatusRefreshed HandshakeStatus = "refreshed"
	// StatusInsertPending means the user must visit the consent URL.
	StatusInsertPending HandshakeStatus = "insert_pending"
)

type HandshakeResult struct {
	Status HandshakeStatus
	// URL and TTL are set only for StatusInsertPending.
	URL string
	TTL time.Duration
}

// Handshake failure classes. User-facing responses must render all of
// them identically; the distinction exists for operator logs only.
var (
	ErrInvalidState       = errors.New("diskauth: invalid handshake state")
	ErrMissingData        = errors.New("diskauth: no credential record")
	ErrExpiredInsertToken = errors.New("diskauth: insert token expired or corrupt")
	ErrInvalidInsertToken = errors.New("diskauth: insert token mismatch")
)

// ErrNoAccessToken reports that the user has no usable grant and must
// run /grant_access.
var ErrNoAccessToken = errors.New("diskauth: no usable access token")

// ErrNoRefreshToken makes Refresh a clean failure when no refresh
// token is stored; nothing is mutated.
var ErrNoRefreshToken = errors.New("diskauth: no refresh token")

// ExchangeError wraps a failed code/refresh exchange with the remote
// provider's machine code and description.
type ExchangeError struct {
	Code        string
	Description string
	Err         error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return "diskauth: exchange failed: " + e.Code + ": " + e.Description
	}
	return "diskauth: exchange failed: " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error { return e.Err }
