package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralSigner()
	require.NoError(t, err)

	claims := NewAccessClaims("client-1", "sess-1", "gateway", time.Hour, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := signer.Verifier("gateway").Verify(token)
	require.NoError(t, err)
	require.Equal(t, "client-1", got.Subject)
	require.Equal(t, "sess-1", got.SID)
	require.Equal(t, TokenKindAccess, got.Kind)
	require.NotEmpty(t, got.ID)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	a, err := NewEphemeralSigner()
	require.NoError(t, err)
	b, err := NewEphemeralSigner()
	require.NoError(t, err)

	token, err := a.Sign(NewAccessClaims("client-1", "s", "gateway", time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = b.Verifier("gateway").Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralSigner()
	require.NoError(t, err)

	// Issued well in the past so the leeway cannot save it.
	token, err := signer.Sign(NewAccessClaims("client-1", "s", "gateway", time.Minute, time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	_, err = signer.Verifier("gateway").Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralSigner()
	require.NoError(t, err)

	token, err := signer.Sign(NewAccessClaims("client-1", "s", "other", time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = signer.Verifier("gateway").Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralSigner()
	require.NoError(t, err)

	_, err = signer.Verifier("gateway").Verify("not.a.jwt")
	require.Error(t, err)
}

func TestSeedDeterminism(t *testing.T) {
	t.Parallel()

	seed := make([]byte, 32)
	a, err := NewSignerFromSeed(seed)
	require.NoError(t, err)
	b, err := NewSignerFromSeed(seed)
	require.NoError(t, err)

	token, err := a.Sign(NewAccessClaims("client-1", "s", "gateway", time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = b.Verifier("gateway").Verify(token)
	require.NoError(t, err)
}
