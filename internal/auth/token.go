// Package auth validates the session token the host hands the frame at
// mount time. The token binds the session to a game, a user, and a seat
// position so the frame cannot act for another seat.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/boardframe/internal/errors"
)

// Claims captures the validated session token claims.
type Claims struct {
	GameID    string
	UserID    string
	Position  int
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// sessionClaims is the internal claims type used for JWT parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	GameID   string `json:"game_id"`
	Position int    `json:"position"`
}

// Verifier validates session tokens issued by the host.
type Verifier struct {
	Secret []byte
	Now    func() time.Time
}

// Issue signs a session token. Primarily used by tests and local hosts.
func (v Verifier) Issue(gameID, userID string, position int, ttl time.Duration) (string, error) {
	if len(v.Secret) == 0 {
		return "", fmt.Errorf("session token secret is not configured")
	}
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		GameID:   gameID,
		Position: position,
	})
	signed, err := token.SignedString(v.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate verifies a session token and returns its claims.
func (v Verifier) Validate(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionTokenInvalid, "session token is required")
	}
	if len(v.Secret) == 0 {
		return Claims{}, fmt.Errorf("session token secret is not configured")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeSessionTokenInvalid, "parse session token", err)
	}

	if strings.TrimSpace(parsed.GameID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionTokenInvalid, "session token game id is required")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionTokenInvalid, "session token subject is required")
	}
	if parsed.Position < 0 {
		return Claims{}, apperrors.New(apperrors.CodeSessionTokenInvalid, "session token position is negative")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeSessionTokenInvalid, "session token exp is required")
	}

	claims := Claims{
		GameID:    parsed.GameID,
		UserID:    parsed.Subject,
		Position:  parsed.Position,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func (v Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
