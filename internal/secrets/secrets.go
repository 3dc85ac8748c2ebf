// Package secrets encrypts tokens at rest with fernet. The ciphertext
// embeds its issue time, so decryption can enforce a lifetime without
// storing a separate issued-at column.
package secrets

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// ErrInvalidToken covers both tampered ciphertext and expired tokens.
// Callers must not try to tell the two apart.
var ErrInvalidToken = errors.New("secrets: invalid or expired token")

type Codec struct {
	key *fernet.Key
}

// NewCodec takes a urlsafe base64 256-bit fernet key.
func NewCodec(key string) (*Codec, error) {
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("decode fernet key: %w", err)
	}
	return &Codec{key: k}, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies the ciphertext without a lifetime bound
// (refresh tokens have no tracked expiry).
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	return c.decrypt(ciphertext, 0)
}

// DecryptWithTTL additionally rejects ciphertext issued more than ttl
// ago. A ttl of zero disables the bound.
func (c *Codec) DecryptWithTTL(ciphertext string, ttl time.Duration) (string, error) {
	return c.decrypt(ciphertext, ttl)
}

func (c *Codec) decrypt(ciphertext string, ttl time.Duration) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(ciphertext), ttl, []*fernet.Key{c.key})
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}

// GenerateKey returns a fresh urlsafe base64 fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}
