package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"crashcore/internal/store"
)

// tokenType distinguishes access from refresh tokens inside the claims set,
// since both are signed with the same secret (spec §4.3).
type tokenType string

const (
	typeAccess  tokenType = "access"
	typeRefresh tokenType = "refresh"
)

// Claims is the JWT payload, grounded on the service_layer reference repo's
// auth.Claims shape (internal/app/auth), narrowed to this server's roles.
type Claims struct {
	UserID string      `json:"sub"`
	Role   store.Role  `json:"role"`
	Type   tokenType   `json:"typ"`
	jwt.RegisteredClaims
}

func newClaims(userID string, role store.Role, typ tokenType, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
