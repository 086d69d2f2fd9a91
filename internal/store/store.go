// Package store defines the persistence interface for the staking engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/port3/staking-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// CreatePool and ApplyTransition are the engine's transaction boundaries:
// every record they receive must be persisted atomically so no concurrent
// reader ever observes a half-applied operation.
type Store interface {
	// --- Config (singleton) ---

	// GetConfig retrieves the deployment config, or ErrNotFound before
	// initialization.
	GetConfig(ctx context.Context) (*model.Config, error)

	// PutConfig creates or replaces the deployment config.
	PutConfig(ctx context.Context, cfg *model.Config) error

	// --- Pools ---

	// CreatePool persists a new pool together with the bumped pool count
	// in cfg, atomically.
	CreatePool(ctx context.Context, cfg *model.Config, pool *model.Pool) error

	// GetPool retrieves a pool by its identifier.
	GetPool(ctx context.Context, id uint64) (*model.Pool, error)

	// ListPools returns all pools in creation order.
	ListPools(ctx context.Context) ([]model.Pool, error)

	// --- Positions ---

	// GetPosition retrieves one user's position in one pool, or ErrNotFound.
	GetPosition(ctx context.Context, poolID uint64, user string) (*model.Position, error)

	// ListPositionsByPool returns every position recorded for a pool,
	// including zeroed historical ones.
	ListPositionsByPool(ctx context.Context, poolID uint64) ([]model.Position, error)

	// --- Transactions ---

	// ApplyTransition persists the outcome of one mutating ledger
	// operation — updated config, pool, position, and the immutable
	// ledger entry — as a single transaction.
	ApplyTransition(ctx context.Context, cfg *model.Config, pool *model.Pool, pos *model.Position, entry *model.LedgerEntry) error

	// --- Immutable ledger ---

	// LedgerByPool returns all ledger entries for a pool, oldest first.
	LedgerByPool(ctx context.Context, poolID uint64) ([]model.LedgerEntry, error)

	// LedgerByUser returns all ledger entries for a user, oldest first.
	LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error)
}
