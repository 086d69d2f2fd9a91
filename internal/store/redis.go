package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/port3/staking-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) PutConfig(ctx context.Context, cfg *model.Config) error {
	if err := s.primary.PutConfig(ctx, cfg); err != nil {
		return err
	}
	s.cacheJSON(ctx, configKey(), cfg)
	return nil
}

func (s *CachedStore) CreatePool(ctx context.Context, cfg *model.Config, pool *model.Pool) error {
	if err := s.primary.CreatePool(ctx, cfg, pool); err != nil {
		return err
	}
	s.cacheJSON(ctx, configKey(), cfg)
	s.cacheJSON(ctx, poolKey(pool.ID), pool)
	return nil
}

func (s *CachedStore) ApplyTransition(ctx context.Context, cfg *model.Config, pool *model.Pool, pos *model.Position, entry *model.LedgerEntry) error {
	if err := s.primary.ApplyTransition(ctx, cfg, pool, pos, entry); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx, configKey(), poolKey(pool.ID), positionCacheKey(pos.PoolID, pos.User))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetConfig(ctx context.Context) (*model.Config, error) {
	data, err := s.rdb.Get(ctx, configKey()).Bytes()
	if err == nil {
		var cfg model.Config
		if json.Unmarshal(data, &cfg) == nil {
			return &cfg, nil
		}
	}

	cfg, err := s.primary.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, configKey(), cfg)
	return cfg, nil
}

func (s *CachedStore) GetPool(ctx context.Context, id uint64) (*model.Pool, error) {
	data, err := s.rdb.Get(ctx, poolKey(id)).Bytes()
	if err == nil {
		var p model.Pool
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, poolKey(id), p)
	return p, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, poolID uint64, user string) (*model.Position, error) {
	data, err := s.rdb.Get(ctx, positionCacheKey(poolID, user)).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, poolID, user)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, positionCacheKey(poolID, user), p)
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) ListPositionsByPool(ctx context.Context, poolID uint64) ([]model.Position, error) {
	return s.primary.ListPositionsByPool(ctx, poolID)
}

func (s *CachedStore) LedgerByPool(ctx context.Context, poolID uint64) ([]model.LedgerEntry, error) {
	return s.primary.LedgerByPool(ctx, poolID)
}

func (s *CachedStore) LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error) {
	return s.primary.LedgerByUser(ctx, user)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func configKey() string { return "staking:config" }

func poolKey(id uint64) string { return fmt.Sprintf("staking:pool:%d", id) }

func positionCacheKey(id uint64, u string) string {
	return fmt.Sprintf("staking:position:%d:%s", id, u)
}
