// Package service implements the gateway's behavior: token lifecycle,
// webhook authentication and proxy dispatch. Handlers stay thin and call
// in here; everything below the service layer is storage and transport.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lockbridge/gateway/internal/gateway/domain"
	"github.com/lockbridge/gateway/internal/gateway/store"
	"github.com/lockbridge/gateway/pkg/cryptox"
	"github.com/lockbridge/gateway/pkg/idx"
	"github.com/lockbridge/gateway/pkg/jwtx"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// TokenTypeBearer is the only token type the gateway issues.
const TokenTypeBearer = "Bearer"

// RefreshTTLMultiplier fixes the refresh window relative to the access TTL.
const RefreshTTLMultiplier = 24

// TokenService owns the token lifecycle: authenticate, issue, validate,
// refresh, revoke and sweep.
type TokenService struct {
	store    store.Store
	signer   *jwtx.Signer
	verifier *jwtx.Verifier

	issuer    string
	accessTTL time.Duration

	now func() time.Time
}

// NewTokenService wires a TokenService over the given store and signer.
func NewTokenService(st store.Store, signer *jwtx.Signer, issuer string, accessTTL time.Duration) *TokenService {
	return &TokenService{
		store:     st,
		signer:    signer,
		verifier:  signer.Verifier(issuer),
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate verifies client-credentials. Unknown client, wrong secret
// and deactivated client all come back as ErrInvalidCredentials.
func (s *TokenService) Authenticate(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	client, err := s.store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable work so misses aren't observably faster.
			_ = cryptox.VerifySecret(clientSecret, cryptox.DummyHash)
			return domain.Client{}, ErrInvalidCredentials
		}
		return domain.Client{}, fmt.Errorf("load client: %w", err)
	}

	if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
		return domain.Client{}, ErrInvalidCredentials
	}
	if !client.Active {
		return domain.Client{}, ErrInvalidCredentials
	}
	return client, nil
}

// IssueTokenPair mints a fresh access JWT and opaque refresh token and
// persists the session that binds them. The refresh window is always
// RefreshTTLMultiplier times the access TTL.
func (s *TokenService) IssueTokenPair(ctx context.Context, client domain.Client) (domain.TokenPair, error) {
	return s.issue(ctx, s.store.Sessions(), client)
}

func (s *TokenService) issue(ctx context.Context, sessions store.Sessions, client domain.Client) (domain.TokenPair, error) {
	now := s.now()
	sid := idx.New().String()

	accessToken, err := s.signer.Sign(jwtx.NewAccessClaims(client.ID, sid, s.issuer, s.accessTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	session := domain.Session{
		ID:               sid,
		ClientID:         client.ID,
		AccessTokenHash:  cryptox.FingerprintToken(accessToken),
		RefreshTokenHash: cryptox.FingerprintToken(refreshToken),
		TokenType:        TokenTypeBearer,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(RefreshTTLMultiplier * s.accessTTL),
		CreatedAt:        now,
	}
	if err := sessions.CreateSession(ctx, session); err != nil {
		return domain.TokenPair{}, fmt.Errorf("persist session: %w", err)
	}

	slogx.FromContext(ctx).Info("token pair issued",
		"client_id", client.ID,
		"session_id", sid,
		"access_expires_at", session.AccessExpiresAt,
	)

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// ValidateAccessToken checks a presented access token. The embedded JWT
// checks (signature, issuer, kind, expiry with leeway) run first as a
// cheap local filter; the stored session row is authoritative for revoke
// state and expiry.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (jwtx.Claims, domain.Session, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, domain.Session{}, ErrInvalidToken
	}

	session, err := s.store.Sessions().GetSessionByAccessHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Claims{}, domain.Session{}, ErrInvalidToken
		}
		return jwtx.Claims{}, domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	if session.Revoked || session.AccessExpired(s.now()) {
		return jwtx.Claims{}, domain.Session{}, ErrInvalidToken
	}
	return claims, session, nil
}

// Refresh rotates a refresh token: the presented token is consumed
// (single use) and a brand-new pair is issued, all in one transaction.
// A concurrent refresh of the same token loses the consume race and gets
// ErrInvalidRefresh.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var pair domain.TokenPair

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		session, err := tx.Sessions().ConsumeSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if session.RefreshExpired(s.now()) {
			return ErrInvalidRefresh
		}

		client, err := tx.Clients().GetClientByID(ctx, session.ClientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return fmt.Errorf("load client: %w", err)
		}
		if !client.Active {
			return ErrInvalidRefresh
		}

		pair, err = s.issue(ctx, tx.Sessions(), client)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Revoke invalidates the session behind a presented token, access or
// refresh. Idempotent: unknown and already-revoked tokens succeed too,
// so the endpoint leaks nothing about token validity.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	hash := cryptox.FingerprintToken(token)

	session, err := s.store.Sessions().GetSessionByAccessHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		session, err = s.store.Sessions().GetSessionByRefreshHash(ctx, hash)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.store.Sessions().RevokeSession(ctx, session.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	slogx.FromContext(ctx).Info("session revoked",
		"client_id", session.ClientID,
		"session_id", session.ID,
	)
	return nil
}

// RevokeAllForClient bulk-revokes every live session of a client, used
// when a client is deactivated.
func (s *TokenService) RevokeAllForClient(ctx context.Context, clientID string) error {
	return s.store.Sessions().RevokeAllClientSessions(ctx, clientID)
}

// SweepExpired deletes sessions whose access expiry has passed and
// returns how many rows went away.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.Sessions().DeleteExpiredSessions(ctx)
}
