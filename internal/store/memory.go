package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/port3/staking-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	config    *model.Config
	pools     map[uint64]*model.Pool
	positions map[string]*model.Position // poolID:user
	ledger    []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[uint64]*model.Pool),
		positions: make(map[string]*model.Position),
	}
}

func positionKey(poolID uint64, user string) string {
	return fmt.Sprintf("%d:%s", poolID, user)
}

func (s *MemoryStore) GetConfig(_ context.Context) (*model.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, ErrNotFound
	}
	cfg := *s.config
	return &cfg, nil
}

func (s *MemoryStore) PutConfig(_ context.Context, cfg *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *cfg
	s.config = &copy
	return nil
}

func (s *MemoryStore) CreatePool(_ context.Context, cfg *model.Config, pool *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[pool.ID]; exists {
		return fmt.Errorf("pool %d already exists", pool.ID)
	}

	poolCopy := *pool
	cfgCopy := *cfg
	s.pools[pool.ID] = &poolCopy
	s.config = &cfgCopy
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, id uint64) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("pool %d: %w", id, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, poolID uint64, user string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey(poolID, user)]
	if !ok {
		return nil, fmt.Errorf("position %d/%s: %w", poolID, user, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPositionsByPool(_ context.Context, poolID uint64) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.PoolID == poolID {
			positions = append(positions, *p)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].User < positions[j].User })
	return positions, nil
}

// ApplyTransition applies all records under one lock so no reader observes
// a half-applied operation.
func (s *MemoryStore) ApplyTransition(_ context.Context, cfg *model.Config, pool *model.Pool, pos *model.Position, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[pool.ID]; !ok {
		return fmt.Errorf("pool %d: %w", pool.ID, ErrNotFound)
	}

	cfgCopy := *cfg
	poolCopy := *pool
	posCopy := *pos

	s.config = &cfgCopy
	s.pools[pool.ID] = &poolCopy
	s.positions[positionKey(pos.PoolID, pos.User)] = &posCopy
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) LedgerByPool(_ context.Context, poolID uint64) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.PoolID == poolID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) LedgerByUser(_ context.Context, user string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.User == user {
			result = append(result, e)
		}
	}
	return result, nil
}
