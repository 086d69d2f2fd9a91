// Package staking implements the pooled staking ledger engine: pool
// registry, per-user positions, reward accrual, lock enforcement, and the
// HTTP handlers exposing them.
//
// All balances use the fixed-point amount type — never float64 for money.
package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/port3/staking-engine/internal/amount"
	"github.com/port3/staking-engine/internal/fee"
	"github.com/port3/staking-engine/internal/metrics"
	"github.com/port3/staking-engine/internal/model"
	"github.com/port3/staking-engine/internal/reward"
	"github.com/port3/staking-engine/internal/store"
	"github.com/port3/staking-engine/internal/token"
)

// Service is the ledger engine. A mutex serializes mutating operations so
// each observes one consistent snapshot of config, pool, and position
// (single-instance; for horizontal scaling, replace with distributed
// locking or database-level optimistic concurrency).
type Service struct {
	store    store.Store
	vault    token.Vault
	throttle reward.Throttle
	mu       sync.Mutex
	now      func() time.Time
	hub      *Hub // optional WebSocket hub for event broadcasts
}

// NewService creates the engine over a store and a token vault.
// Pass nil for hub if event broadcasting is not needed.
func NewService(st store.Store, vault token.Vault, throttle reward.Throttle, hub *Hub) *Service {
	return &Service{
		store:    st,
		vault:    vault,
		throttle: throttle,
		now:      func() time.Time { return time.Now().UTC() },
		hub:      hub,
	}
}

// SetClock overrides the engine's time source. Tests use this to drive
// lock timing and accrual deterministically.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Initialize creates the deployment config. Fails with
// ErrAlreadyInitialized on any call after the first, leaving state
// unchanged.
func (s *Service) Initialize(ctx context.Context, owner string) (*model.Config, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner", ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetConfig(ctx); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	cfg := &model.Config{
		Owner:              owner,
		PoolCount:          0,
		IsPaused:           false,
		TotalMintReward:    amount.Zero(),
		TotalEthMintReward: amount.Zero(),
		FeePerThousand:     0,
		TotalStaking:       amount.Zero(),
		RewardThreshold:    model.DefaultRewardThreshold,
		CreatedAt:          s.now(),
	}
	if err := s.store.PutConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.log("initialized", "owner", owner, "reward_threshold", cfg.RewardThreshold.String())
	return cfg, nil
}

// AddPoolParams carries the pool parameters for AddPool.
type AddPoolParams struct {
	LPToken         string
	RewardPerBlock  amount.Amount
	LockPeriod      int64 // seconds
	UnlockPeriod    int64 // seconds
	EmergencyEnable bool
}

// AddPool allocates a new pool. Owner-only. The new pool's identifier is
// the config's pool count before the increment.
func (s *Service) AddPool(ctx context.Context, caller string, p AddPoolParams) (*model.Pool, error) {
	if p.LPToken == "" {
		return nil, fmt.Errorf("%w: empty lp token", ErrInvalidParams)
	}
	if p.LockPeriod < 0 {
		return nil, fmt.Errorf("%w: negative lock period", ErrInvalidParams)
	}
	if p.UnlockPeriod <= 0 {
		return nil, fmt.Errorf("%w: unlock period must be positive", ErrInvalidParams)
	}
	// A locked pool's unlock window cannot outlast its lock.
	if p.LockPeriod > 0 && p.LockPeriod < p.UnlockPeriod {
		return nil, fmt.Errorf("%w: lock period shorter than unlock period", ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != caller {
		return nil, ErrUnauthorized
	}

	now := s.now()
	pool := &model.Pool{
		ID:              cfg.PoolCount,
		LPToken:         p.LPToken,
		RewardPerBlock:  p.RewardPerBlock,
		LockPeriod:      p.LockPeriod,
		UnlockPeriod:    p.UnlockPeriod,
		EmergencyEnable: p.EmergencyEnable,
		Amount:          amount.Zero(),
		LastRewardTime:  now,
		CreatedAt:       now,
	}
	cfg.PoolCount++

	if err := s.store.CreatePool(ctx, cfg, pool); err != nil {
		return nil, err
	}

	metrics.PoolsTotal.Inc()
	s.log("pool added",
		"pool_id", pool.ID,
		"lp_token", pool.LPToken,
		"reward_per_block", pool.RewardPerBlock.String(),
		"lock_period", pool.LockPeriod,
		"unlock_period", pool.UnlockPeriod,
		"emergency_enable", pool.EmergencyEnable,
	)
	return pool, nil
}

// Deposit stakes amt into the pool for user. The underlying asset moves
// from the user's account into pool custody in the same operation; a
// failed transfer leaves all ledger state untouched.
func (s *Service) Deposit(ctx context.Context, user string, poolID uint64, amt amount.Amount) (*model.Position, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: empty user", ErrInvalidParams)
	}
	if amt.IsZero() {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, ErrPaused
	}

	pool, err := s.pool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pos, err := s.position(ctx, poolID, user, now)
	if err != nil {
		return nil, err
	}

	// Settle reward earned under the old proportion before any balance
	// moves.
	if err := s.settle(cfg, pool, pos, now); err != nil {
		return nil, err
	}

	if pos.Amount, err = pos.Amount.Add(amt); err != nil {
		return nil, err
	}
	if pool.Amount, err = pool.Amount.Add(amt); err != nil {
		return nil, err
	}
	if cfg.TotalStaking, err = cfg.TotalStaking.Add(amt); err != nil {
		return nil, err
	}
	pos.DepositTime = now
	pool.LastRewardTime = now

	// Asset custody moves with the ledger update.
	if err := s.vault.Transfer(ctx, user, pool.CustodyAccount(), amt); err != nil {
		return nil, err
	}

	entry := s.entry(user, poolID, model.KindDeposit, amt, amount.Zero(), amount.Zero(), now)
	if err := s.store.ApplyTransition(ctx, cfg, pool, pos, entry); err != nil {
		return nil, err
	}

	metrics.DepositsTotal.Inc()
	metrics.SetTotalStaking(cfg.TotalStaking)
	s.log("deposit",
		"user", user,
		"pool_id", poolID,
		"amount", amt.String(),
		"position_amount", pos.Amount.String(),
		"pool_amount", pool.Amount.String(),
	)
	s.broadcast(Event{
		Type:         model.KindDeposit,
		PoolID:       poolID,
		User:         user,
		Amount:       amt.String(),
		TotalStaking: cfg.TotalStaking.String(),
	})

	result := *pos
	return &result, nil
}

// WithdrawResult reports what one withdrawal released.
type WithdrawResult struct {
	Position *model.Position `json:"position"`
	Net      amount.Amount   `json:"net"`    // principal released to the user
	Fee      amount.Amount   `json:"fee"`    // routed to the fee sink
	Reward   amount.Amount   `json:"reward"` // reward paid (withdraw) or forfeited (emergency)
}

// Withdraw releases amt of the user's stake through the orderly path:
// lock satisfied, inside the unlock window, per-mille fee deducted,
// pending reward paid out in the same operation.
func (s *Service) Withdraw(ctx context.Context, user string, poolID uint64, amt amount.Amount) (*WithdrawResult, error) {
	if amt.IsZero() {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, ErrPaused
	}

	pool, err := s.pool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	pos, err := s.store.GetPosition(ctx, poolID, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	if amt.GreaterThan(pos.Amount) {
		return nil, fmt.Errorf("%w: staked %s, requested %s",
			ErrInsufficientBalance, pos.Amount, amt)
	}

	now := s.now()
	switch state := Classify(pos, pool, now); state {
	case Active:
		remaining := pool.LockPeriod - (now.Unix() - pos.DepositTime.Unix())
		return nil, fmt.Errorf("%w: %ds remaining", ErrStillLocked, remaining)
	case Expired:
		return nil, ErrWindowExpired
	}

	if err := s.settle(cfg, pool, pos, now); err != nil {
		return nil, err
	}

	feeAmt, net, err := fee.Split(amt, cfg.FeePerThousand)
	if err != nil {
		return nil, err
	}

	payout := pos.PendingReward
	pos.PendingReward = amount.Zero()
	if pos.RewardClaimed, err = pos.RewardClaimed.Add(payout); err != nil {
		return nil, err
	}

	if pos.Amount, err = pos.Amount.Sub(amt); err != nil {
		return nil, err
	}
	if pool.Amount, err = pool.Amount.Sub(amt); err != nil {
		return nil, err
	}
	if cfg.TotalStaking, err = cfg.TotalStaking.Sub(amt); err != nil {
		return nil, err
	}
	pool.LastRewardTime = now

	custody := pool.CustodyAccount()
	if !feeAmt.IsZero() {
		if err := s.vault.Transfer(ctx, custody, cfg.FeeAccount, feeAmt); err != nil {
			return nil, err
		}
	}
	if err := s.vault.Transfer(ctx, custody, user, net); err != nil {
		return nil, err
	}
	if !payout.IsZero() {
		if err := s.vault.Mint(ctx, user, payout); err != nil {
			return nil, err
		}
	}

	entry := s.entry(user, poolID, model.KindWithdraw, amt, feeAmt, payout, now)
	if err := s.store.ApplyTransition(ctx, cfg, pool, pos, entry); err != nil {
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues(model.KindWithdraw).Inc()
	metrics.RewardPaid(payout)
	metrics.SetTotalStaking(cfg.TotalStaking)
	s.log("withdraw",
		"user", user,
		"pool_id", poolID,
		"amount", amt.String(),
		"fee", feeAmt.String(),
		"reward", payout.String(),
		"position_amount", pos.Amount.String(),
	)
	s.broadcast(Event{
		Type:         model.KindWithdraw,
		PoolID:       poolID,
		User:         user,
		Amount:       amt.String(),
		Fee:          feeAmt.String(),
		Reward:       payout.String(),
		TotalStaking: cfg.TotalStaking.String(),
	})

	return &WithdrawResult{Position: pos, Net: net, Fee: feeAmt, Reward: payout}, nil
}

// EmergencyWithdraw releases the user's full stake, bypassing lock state.
// Pending reward is forfeited — zeroed without payout — and no fee is
// charged. Only available where the pool enables it (a pool with no lock
// has nothing to escape, so the path stays open there too).
func (s *Service) EmergencyWithdraw(ctx context.Context, user string, poolID uint64) (*WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := s.pool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !pool.EmergencyEnable && pool.LockPeriod > 0 {
		return nil, ErrEmergencyDisabled
	}

	pos, err := s.store.GetPosition(ctx, poolID, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	now := s.now()
	released := pos.Amount
	forfeited := pos.PendingReward

	pos.Amount = amount.Zero()
	pos.PendingReward = amount.Zero()
	pos.LastHarvestTime = now

	if pool.Amount, err = pool.Amount.Sub(released); err != nil {
		return nil, err
	}
	if cfg.TotalStaking, err = cfg.TotalStaking.Sub(released); err != nil {
		return nil, err
	}
	pool.LastRewardTime = now

	if !released.IsZero() {
		if err := s.vault.Transfer(ctx, pool.CustodyAccount(), user, released); err != nil {
			return nil, err
		}
	}

	entry := s.entry(user, poolID, model.KindEmergencyWithdraw, released, amount.Zero(), forfeited, now)
	if err := s.store.ApplyTransition(ctx, cfg, pool, pos, entry); err != nil {
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues(model.KindEmergencyWithdraw).Inc()
	metrics.SetTotalStaking(cfg.TotalStaking)
	s.log("emergency withdraw",
		"user", user,
		"pool_id", poolID,
		"released", released.String(),
		"forfeited_reward", forfeited.String(),
	)
	s.broadcast(Event{
		Type:         model.KindEmergencyWithdraw,
		PoolID:       poolID,
		User:         user,
		Amount:       released.String(),
		Reward:       forfeited.String(),
		TotalStaking: cfg.TotalStaking.String(),
	})

	return &WithdrawResult{Position: pos, Net: released, Fee: amount.Zero(), Reward: forfeited}, nil
}

// SetPaused toggles the global pause gate. Owner-only; effective
// immediately for all pools.
func (s *Service) SetPaused(ctx context.Context, caller string, paused bool) (*model.Config, error) {
	return s.updateConfig(ctx, caller, "set paused", func(cfg *model.Config) error {
		cfg.IsPaused = paused
		return nil
	})
}

// SetFee sets the withdrawal fee rate and the fee sink account.
// Owner-only; the rate must lie within [0, 1000] parts per thousand.
func (s *Service) SetFee(ctx context.Context, caller string, perThousand int64, feeAccount string) (*model.Config, error) {
	if err := fee.ValidateRate(perThousand); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return s.updateConfig(ctx, caller, "set fee", func(cfg *model.Config) error {
		cfg.FeePerThousand = perThousand
		cfg.FeeAccount = feeAccount
		return nil
	})
}

// SetRewardThreshold sets the emission threshold. Owner-only.
func (s *Service) SetRewardThreshold(ctx context.Context, caller string, threshold amount.Amount) (*model.Config, error) {
	return s.updateConfig(ctx, caller, "set reward threshold", func(cfg *model.Config) error {
		cfg.RewardThreshold = threshold
		return nil
	})
}

// SetVaultContract points the config at a new vault contract. Owner-only.
func (s *Service) SetVaultContract(ctx context.Context, caller, vaultContract string) (*model.Config, error) {
	return s.updateConfig(ctx, caller, "set vault contract", func(cfg *model.Config) error {
		cfg.VaultContract = vaultContract
		return nil
	})
}

// --- Queries ---

// Config returns the deployment config.
func (s *Service) Config(ctx context.Context) (*model.Config, error) {
	return s.config(ctx)
}

// Pool returns one pool by identifier.
func (s *Service) Pool(ctx context.Context, id uint64) (*model.Pool, error) {
	return s.pool(ctx, id)
}

// Pools returns all pools in creation order.
func (s *Service) Pools(ctx context.Context) ([]model.Pool, error) {
	return s.store.ListPools(ctx)
}

// PoolLength returns the number of pools created so far.
func (s *Service) PoolLength(ctx context.Context) (uint64, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.PoolCount, nil
}

// Position returns one user's position, or ErrPositionNotFound.
func (s *Service) Position(ctx context.Context, poolID uint64, user string) (*model.Position, error) {
	pos, err := s.store.GetPosition(ctx, poolID, user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPositionNotFound
	}
	return pos, err
}

// LedgerByPool returns a pool's ledger entries, oldest first.
func (s *Service) LedgerByPool(ctx context.Context, poolID uint64) ([]model.LedgerEntry, error) {
	return s.store.LedgerByPool(ctx, poolID)
}

// LedgerByUser returns a user's ledger entries, oldest first.
func (s *Service) LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error) {
	return s.store.LedgerByUser(ctx, user)
}

// --- Internals ---

// settle runs reward accrual for the position up to now and advances its
// checkpoint. Must run before position or pool amounts mutate.
func (s *Service) settle(cfg *model.Config, pool *model.Pool, pos *model.Position, now time.Time) error {
	delta, err := reward.Accrue(pool.RewardPerBlock, pos.LastHarvestTime, now, pos.Amount, pool.Amount)
	if err != nil {
		return err
	}
	delta, err = reward.ApplyThrottle(s.throttle, delta, cfg.TotalMintReward, cfg.RewardThreshold)
	if err != nil {
		return err
	}

	if !delta.IsZero() {
		if pos.PendingReward, err = pos.PendingReward.Add(delta); err != nil {
			return err
		}
		if cfg.TotalMintReward, err = cfg.TotalMintReward.Add(delta); err != nil {
			return err
		}
	}
	pos.LastHarvestTime = now
	return nil
}

func (s *Service) config(ctx context.Context) (*model.Config, error) {
	cfg, err := s.store.GetConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return cfg, err
}

func (s *Service) pool(ctx context.Context, id uint64) (*model.Pool, error) {
	p, err := s.store.GetPool(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	return p, err
}

// position loads the user's record, or starts a fresh zero position on
// first deposit.
func (s *Service) position(ctx context.Context, poolID uint64, user string, now time.Time) (*model.Position, error) {
	pos, err := s.store.GetPosition(ctx, poolID, user)
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &model.Position{
		PoolID:          poolID,
		User:            user,
		Amount:          amount.Zero(),
		PendingReward:   amount.Zero(),
		RewardClaimed:   amount.Zero(),
		DepositTime:     now,
		LastHarvestTime: now,
	}, nil
}

func (s *Service) updateConfig(ctx context.Context, caller, what string, mutate func(*model.Config) error) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != caller {
		return nil, ErrUnauthorized
	}
	if err := mutate(cfg); err != nil {
		return nil, err
	}
	if err := s.store.PutConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.log(what, "owner", caller)
	return cfg, nil
}

func (s *Service) entry(user string, poolID uint64, kind string, amt, feeAmt, rewardAmt amount.Amount, now time.Time) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:        uuid.New().String(),
		User:      user,
		PoolID:    poolID,
		Kind:      kind,
		Amount:    amt,
		Fee:       feeAmt,
		Reward:    rewardAmt,
		Timestamp: now,
	}
}

func (s *Service) broadcast(ev Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

func (s *Service) log(msg string, args ...any) {
	slog.Info(msg, args...)
}
