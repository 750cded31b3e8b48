package store

import (
	"context"
	"errors"

	"github.com/lockbridge/gateway/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. Writes are serialized by the driver; reads may run
// concurrently. The visibility contract is read-committed: a validation
// racing a revoke may briefly observe the pre-revoke row.
type Store interface {
	Clients() Clients
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn
	// returns an error and committing otherwise. Use it for multi-step
	// operations that must be atomic (e.g. refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetClientByID fetches a client regardless of its active flag;
	// callers enforce the active check so failures stay indistinguishable.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by creation date (newest first).
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client (id chosen by the caller).
	CreateClient(ctx context.Context, c domain.Client) error

	// SetClientActive flips the active flag and bumps updated_at.
	SetClientActive(ctx context.Context, clientID string, active bool) error

	// UpdateClientSecretHash replaces the stored secret hash.
	UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error
}

type Sessions interface {
	// CreateSession stores a new session row; it never mutates existing rows.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByAccessHash returns the session owning an access-token
	// fingerprint.
	GetSessionByAccessHash(ctx context.Context, hash string) (domain.Session, error)

	// GetSessionByRefreshHash returns the session owning a refresh-token
	// fingerprint.
	GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// RevokeSession flips revoked=1 for a session id. Idempotent; revoked
	// rows are never un-revoked.
	RevokeSession(ctx context.Context, sessionID string) error

	// ConsumeSessionByRefreshHash atomically revokes the non-revoked
	// session holding this refresh fingerprint. Returns ErrNotFound when
	// no such row exists, which is how a concurrent refresh loses the race.
	ConsumeSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// RevokeAllClientSessions bulk-revokes every session of a client.
	RevokeAllClientSessions(ctx context.Context, clientID string) error

	// DeleteExpiredSessions removes rows whose access expiry has passed,
	// regardless of their revoked flag, and returns the count removed.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
