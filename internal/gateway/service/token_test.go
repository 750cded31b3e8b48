package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/gateway/internal/gateway/domain"
	"github.com/lockbridge/gateway/internal/gateway/store"
	"github.com/lockbridge/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/lockbridge/gateway/pkg/cryptox"
	"github.com/lockbridge/gateway/pkg/idx"
	"github.com/lockbridge/gateway/pkg/jwtx"
)

const testIssuer = "gateway-test"

func newTokenService(t *testing.T, accessTTL time.Duration) (*TokenService, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)

	return NewTokenService(st, signer, testIssuer, accessTTL), st
}

func seedClient(t *testing.T, st store.Store, secret string, active bool) domain.Client {
	t.Helper()

	hash, err := cryptox.HashSecret(secret)
	require.NoError(t, err)

	c := domain.Client{
		ID:         idx.New().String(),
		Name:       "Acme",
		SecretHash: hash,
		Active:     active,
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), c))
	return c
}

func TestAuthenticate(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	got, err := svc.Authenticate(ctx, client.ID, "s3cr3t")
	require.NoError(t, err)
	require.Equal(t, client.ID, got.ID)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, client.ID, "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nope", "s3cr3t")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("deactivated client", func(t *testing.T) {
		inactive := seedClient(t, st, "pw", false)
		_, err := svc.Authenticate(ctx, inactive.ID, "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestIssueAndValidate(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, TokenTypeBearer, pair.TokenType)
	require.EqualValues(t, 60, pair.ExpiresIn)

	claims, session, err := svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, client.ID, claims.Subject)
	require.Equal(t, session.ID, claims.SID)
	require.Equal(t, client.ID, session.ClientID)

	// Refresh window is 24x the access window.
	require.WithinDuration(t,
		session.AccessExpiresAt.Add(23*time.Minute),
		session.RefreshExpiresAt,
		2*time.Second,
	)

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := svc.ValidateAccessToken(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("well-formed token from another signer", func(t *testing.T) {
		other, err := jwtx.NewEphemeralSigner()
		require.NoError(t, err)
		forged, err := other.Sign(jwtx.NewAccessClaims(client.ID, "sid", testIssuer, time.Minute, time.Now()))
		require.NoError(t, err)
		_, _, err = svc.ValidateAccessToken(ctx, forged)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateRejectsRevoked(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))

	_, _, err = svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateHonorsStoredExpiry(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	// The JWT still verifies within leeway, but the stored row says no.
	svc.now = func() time.Time { return time.Now().UTC().Add(time.Minute + time.Second) }

	_, _, err = svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotation(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The new pair validates; the consumed one is dead on both legs.
	_, _, err = svc.ValidateAccessToken(ctx, next.AccessToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	_, _, err = svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshSingleUseUnderConcurrency(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrInvalidRefresh)
		}
	}
	require.Equal(t, 1, wins)
}

func TestRefreshRejectsDeactivatedClient(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	require.NoError(t, st.Clients().SetClientActive(ctx, client.ID, false))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefreshRejectsExpiredWindow(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRevokeIdempotent(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	pair, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, svc.Revoke(ctx, "never-issued"))

	// Revoking by refresh token killed the access leg too.
	_, _, err = svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSweepExpired(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	client := seedClient(t, st, "s3cr3t", true)

	live, err := svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)

	// Issue two pairs backdated beyond their access expiry.
	svc.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Minute) }
	_, err = svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)
	_, err = svc.IssueTokenPair(ctx, client)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().UTC() }

	removed, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	_, _, err = svc.ValidateAccessToken(ctx, live.AccessToken)
	require.NoError(t, err)

	removed, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRevokeAllForClient(t *testing.T) {
	svc, st := newTokenService(t, time.Minute)
	ctx := context.Background()
	a := seedClient(t, st, "pw-a", true)
	b := seedClient(t, st, "pw-b", true)

	pairA, err := svc.IssueTokenPair(ctx, a)
	require.NoError(t, err)
	pairB, err := svc.IssueTokenPair(ctx, b)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForClient(ctx, a.ID))

	_, _, err = svc.ValidateAccessToken(ctx, pairA.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = svc.ValidateAccessToken(ctx, pairB.AccessToken)
	require.NoError(t, err)
}
