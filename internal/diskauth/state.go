package diskauth

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateCodec packs {userID, insertToken} into the opaque OAuth state
// parameter. The payload is HS256-signed so a redirected state cannot
// be tampered with; replay of an old URL is caught later by the
// insert-token comparison, not here.
type StateCodec struct {
	key []byte
}

func NewStateCodec(key string) *StateCodec {
	return &StateCodec{key: []byte(key)}
}

type stateClaims struct {
	UserID      int64  `json:"user_id"`
	InsertToken string `json:"insert_token"`
	jwt.RegisteredClaims
}

func (c *StateCodec) Encode(userID int64, insertToken string) (string, error) {
	claims := stateClaims{
		UserID:      userID,
		InsertToken: insertToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(signed)), nil
}

// Decode maps every failure mode (bad base64, bad signature, missing
// claims) to ErrInvalidState so callers cannot leak which check failed.
func (c *StateCodec) Decode(state string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return 0, "", ErrInvalidState
	}
	var claims stateClaims
	token, err := jwt.ParseWithClaims(string(raw), &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidState
	}
	if claims.UserID == 0 || claims.InsertToken == "" {
		return 0, "", ErrInvalidState
	}
	return claims.UserID, claims.InsertToken, nil
}
