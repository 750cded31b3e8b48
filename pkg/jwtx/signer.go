package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs access-token claims with an Ed25519 key.
type Signer struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewEphemeralSigner generates a fresh Ed25519 keypair. Tokens signed with
// it do not survive a process restart, which is acceptable because access
// tokens are short-lived and refresh tokens are validated against the store.
func NewEphemeralSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate ed25519 key: %w", err)
	}
	return &Signer{key: priv, pub: pub}, nil
}

// NewSignerFromSeed derives a deterministic keypair from a 32-byte seed,
// letting multiple processes verify each other's tokens.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwtx: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{key: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign turns claims into a signed JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	if s == nil || s.key == nil {
		return "", errors.New("jwtx: nil signer")
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
}

// Verifier returns a Verifier for tokens produced by this signer.
func (s *Signer) Verifier(issuer string) *Verifier {
	return &Verifier{pub: s.pub, issuer: issuer}
}
