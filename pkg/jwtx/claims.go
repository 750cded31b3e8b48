package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKindAccess marks a token as a short-lived access token. Refresh
// tokens are opaque and never pass through this package.
const TokenKindAccess = "access"

// Claims are the access-token claims embedded in issued JWTs. The subject
// is the client identifier; SID binds the token to its session row.
type Claims struct {
	jwt.RegisteredClaims

	// Kind distinguishes token types ("access").
	Kind string `json:"kind,omitempty"`

	// SID is the session ID the token pair was persisted under.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds minimally-correct access token claims.
func NewAccessClaims(clientID, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind: TokenKindAccess,
		SID:  sid,
	}
}

// NewJTI returns a URL-safe random uniquifier for the "jti" claim so two
// tokens issued in the same second never collide.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf), allowing leeway for clock skew.
func (c *Claims) ValidateExpiry(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
