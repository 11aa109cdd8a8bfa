package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the verified contents of a session bearer token.
type SessionClaims struct {
	UserID    string
	SessionID string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Verifier validates provider-issued session tokens (HS256, shared secret).
//
// A valid token proves possession of a session; whether that session is still
// active is a separate, server-authoritative question answered by SessionAPI.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier. The secret must be at least 32 bytes.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: session token secret must be at least 32 bytes", ErrConfig)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a session token, returning its claims.
func (v *Verifier) Verify(token string, now time.Time) (SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return SessionClaims{}, ErrInvalidToken
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}

	userID := strings.TrimSpace(claims.Subject)
	sessionID := strings.TrimSpace(claims.SessionID)
	if userID == "" || sessionID == "" {
		return SessionClaims{}, ErrInvalidToken
	}

	return SessionClaims{UserID: userID, SessionID: sessionID}, nil
}
