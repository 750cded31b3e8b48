package domain

import "time"

// TokenPair is what the token endpoint returns: the short-lived access
// token (JWT) and the opaque, single-use refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until access expiry
}

// Session binds one issued token pair to its client. Rows are immutable
// except for Revoked, which only ever flips false to true. Token values
// are stored as deterministic SHA-256 fingerprints, never in plaintext.
type Session struct {
	ID               string
	ClientID         string
	AccessTokenHash  string
	RefreshTokenHash string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Revoked          bool
	CreatedAt        time.Time
}

// AccessExpired reports whether the stored access expiry has passed. This
// is the authoritative check; the expiry embedded in the JWT is only a
// cheap pre-filter.
func (s Session) AccessExpired(now time.Time) bool {
	return now.After(s.AccessExpiresAt)
}

// RefreshExpired reports whether the refresh window has closed.
func (s Session) RefreshExpired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}
