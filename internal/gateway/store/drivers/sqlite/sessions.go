package sqlite

import (
	"context"
	"time"

	"github.com/lockbridge/gateway/internal/gateway/domain"
	"github.com/lockbridge/gateway/internal/gateway/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, client_id, access_token_hash, refresh_token_hash,
	token_type, access_expires_at, refresh_expires_at, revoked, created_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.ClientID, &s.AccessTokenHash, &s.RefreshTokenHash,
		&s.TokenType, &s.AccessExpiresAt, &s.RefreshExpiresAt, &s.Revoked, &s.CreatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, client_id, access_token_hash, refresh_token_hash,
		   token_type, access_expires_at, refresh_expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ClientID, s.AccessTokenHash, s.RefreshTokenHash,
		s.TokenType, s.AccessExpiresAt, s.RefreshExpiresAt, s.Revoked, time.Now().UTC())
	return err
}

func (r *sessionsRepo) GetSessionByAccessHash(ctx context.Context, hash string) (domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE access_token_hash = ?`, hash))
}

func (r *sessionsRepo) GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash))
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, sessionID string) error {
	// Idempotent: revoking an already-revoked or unknown session is a no-op.
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = 1 WHERE id = ?`, sessionID)
	return err
}

// ConsumeSessionByRefreshHash flips revoked on the single non-revoked row
// holding this fingerprint. The WHERE revoked = 0 guard makes refresh
// single-use: of two concurrent refreshes, exactly one sees a row update
// and the other gets ErrNotFound.
func (r *sessionsRepo) ConsumeSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ? AND revoked = 0`, hash))
	if err != nil {
		return domain.Session{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = 1 WHERE id = ? AND revoked = 0`, s.ID)
	if err != nil {
		return domain.Session{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Session{}, err
	} else if n == 0 {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *sessionsRepo) RevokeAllClientSessions(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = 1 WHERE client_id = ?`, clientID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	// Revocation state is irrelevant here: this is an independent
	// garbage-collection pass keyed only on the access expiry.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE access_expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
