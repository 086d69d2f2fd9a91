package staking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/port3/staking-engine/internal/amount"
	"github.com/port3/staking-engine/internal/reward"
	"github.com/port3/staking-engine/internal/staking"
	"github.com/port3/staking-engine/internal/store"
	"github.com/port3/staking-engine/internal/token"
)

const owner = "owner"

func amt(n int64) amount.Amount {
	return amount.MustNew(n)
}

// clock is a controllable time source for lock and accrual timing.
type clock struct {
	now time.Time
}

func (c *clock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// newTestEnv wires a Service over the in-memory store and vault with a
// deterministic clock, initialized with the test owner.
func newTestEnv(t *testing.T) (*staking.Service, *store.MemoryStore, *token.MemoryVault, *clock) {
	t.Helper()
	ms := store.NewMemoryStore()
	vault := token.NewMemoryVault()
	svc := staking.NewService(ms, vault, reward.ThrottleHalt, nil)

	clk := &clock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc.SetClock(func() time.Time { return clk.now })

	if _, err := svc.Initialize(context.Background(), owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return svc, ms, vault, clk
}

// addPool creates a pool with the given timing and funds the user.
func addPool(t *testing.T, svc *staking.Service, vault *token.MemoryVault, p staking.AddPoolParams, user string, funds int64) uint64 {
	t.Helper()
	pool, err := svc.AddPool(context.Background(), owner, p)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if funds > 0 {
		if err := vault.Mint(context.Background(), user, amt(funds)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	return pool.ID
}

func defaultPool() staking.AddPoolParams {
	return staking.AddPoolParams{
		LPToken:         "LP-A",
		RewardPerBlock:  amount.Zero(),
		LockPeriod:      100,
		UnlockPeriod:    50,
		EmergencyEnable: true,
	}
}

// --- Initialization ---

func TestInitialize_Defaults(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)

	cfg, err := svc.Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Owner != owner {
		t.Errorf("owner = %q, want %q", cfg.Owner, owner)
	}
	if cfg.IsPaused {
		t.Error("fresh config should not be paused")
	}
	if cfg.PoolCount != 0 {
		t.Errorf("pool count = %d, want 0", cfg.PoolCount)
	}
	if !cfg.TotalMintReward.IsZero() || !cfg.TotalEthMintReward.IsZero() || !cfg.TotalStaking.IsZero() {
		t.Error("fresh config totals must be zero")
	}
	if cfg.FeePerThousand != 0 {
		t.Errorf("fee = %d, want 0", cfg.FeePerThousand)
	}
	if cfg.RewardThreshold.String() != "50000000000000" {
		t.Errorf("reward threshold = %s, want 50000000000000", cfg.RewardThreshold)
	}
}

func TestInitialize_Twice(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)

	before, _ := svc.Config(context.Background())
	if _, err := svc.Initialize(context.Background(), "someone-else"); !errors.Is(err, staking.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	// State unchanged.
	after, _ := svc.Config(context.Background())
	if after.Owner != before.Owner || after.CreatedAt != before.CreatedAt {
		t.Error("second initialize mutated config")
	}
}

// --- Pool registry ---

func TestAddPool_IncrementsCount(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)
	ctx := context.Background()

	n, _ := svc.PoolLength(ctx)
	if n != 0 {
		t.Fatalf("pool count = %d, want 0", n)
	}

	pool, err := svc.AddPool(ctx, owner, staking.AddPoolParams{
		LPToken:         "LP-A",
		RewardPerBlock:  amt(10),
		LockPeriod:      3600,
		UnlockPeriod:    600,
		EmergencyEnable: true,
	})
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}

	n, _ = svc.PoolLength(ctx)
	if n != 1 {
		t.Errorf("pool count = %d, want 1", n)
	}

	// The created pool is fetchable with the exact parameters passed in.
	got, err := svc.Pool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if got.LPToken != "LP-A" || got.RewardPerBlock.String() != "10" ||
		got.LockPeriod != 3600 || got.UnlockPeriod != 600 || !got.EmergencyEnable {
		t.Errorf("pool = %+v", got)
	}
	if !got.Amount.IsZero() {
		t.Errorf("new pool amount = %s, want 0", got.Amount)
	}
}

func TestAddPool_Unauthorized(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)

	_, err := svc.AddPool(context.Background(), "mallory", defaultPool())
	if !errors.Is(err, staking.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAddPool_InvalidParams(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		p    staking.AddPoolParams
	}{
		{"zero unlock period", staking.AddPoolParams{LPToken: "LP", LockPeriod: 100, UnlockPeriod: 0}},
		{"negative lock period", staking.AddPoolParams{LPToken: "LP", LockPeriod: -1, UnlockPeriod: 10}},
		{"unlock longer than lock", staking.AddPoolParams{LPToken: "LP", LockPeriod: 10, UnlockPeriod: 20}},
		{"empty lp token", staking.AddPoolParams{LockPeriod: 100, UnlockPeriod: 50}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddPool(ctx, owner, tc.p); !errors.Is(err, staking.ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

// --- Deposit ---

func TestDeposit(t *testing.T) {
	svc, _, vault, _ := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 10000)

	pos, err := svc.Deposit(ctx, "alice", pid, amt(1000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if pos.Amount.String() != "1000" {
		t.Errorf("position amount = %s, want 1000", pos.Amount)
	}

	pool, _ := svc.Pool(ctx, pid)
	if pool.Amount.String() != "1000" {
		t.Errorf("pool amount = %s, want 1000", pool.Amount)
	}
	cfg, _ := svc.Config(ctx)
	if cfg.TotalStaking.String() != "1000" {
		t.Errorf("total staking = %s, want 1000", cfg.TotalStaking)
	}

	// Custody moved with the ledger update.
	user, _ := vault.Balance(ctx, "alice")
	custody, _ := vault.Balance(ctx, pool.CustodyAccount())
	if user.String() != "9000" || custody.String() != "1000" {
		t.Errorf("balances = (%s, %s), want (9000, 1000)", user, custody)
	}
}

func TestDeposit_Errors(t *testing.T) {
	svc, _, vault, _ := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 100)

	if _, err := svc.Deposit(ctx, "alice", 99, amt(10)); !errors.Is(err, staking.ErrPoolNotFound) {
		t.Errorf("missing pool: expected ErrPoolNotFound, got %v", err)
	}
	if _, err := svc.Deposit(ctx, "alice", pid, amount.Zero()); !errors.Is(err, staking.ErrInvalidAmount) {
		t.Errorf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	// Unfunded user: transfer fails, no state written.
	if _, err := svc.Deposit(ctx, "bob", pid, amt(10)); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("unfunded: expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := svc.Position(ctx, pid, "bob"); !errors.Is(err, staking.ErrPositionNotFound) {
		t.Error("failed deposit must not create a position")
	}
}

func TestDeposit_Paused(t *testing.T) {
	svc, _, vault, _ := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 100)

	if _, err := svc.SetPaused(ctx, owner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := svc.Deposit(ctx, "alice", pid, amt(10)); !errors.Is(err, staking.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	if _, err := svc.SetPaused(ctx, owner, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := svc.Deposit(ctx, "alice", pid, amt(10)); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}
}

func TestSetPaused_Unauthorized(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)
	if _, err := svc.SetPaused(context.Background(), "mallory", true); !errors.Is(err, staking.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

// --- Withdraw: lock enforcement ---

func TestWithdraw_StillLocked(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	clk.advance(99 * time.Second) // inside the 100s lock
	if _, err := svc.Withdraw(ctx, "alice", pid, amt(1000)); !errors.Is(err, staking.ErrStillLocked) {
		t.Fatalf("expected ErrStillLocked, got %v", err)
	}

	// Refused operation changed nothing.
	pos, _ := svc.Position(ctx, pid, "alice")
	if pos.Amount.String() != "1000" {
		t.Errorf("position amount = %s after refused withdraw, want 1000", pos.Amount)
	}
}

func TestWithdraw_WindowExpired(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	clk.advance(151 * time.Second) // past lock (100s) + window (50s)
	if _, err := svc.Withdraw(ctx, "alice", pid, amt(1000)); !errors.Is(err, staking.ErrWindowExpired) {
		t.Fatalf("expected ErrWindowExpired, got %v", err)
	}
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(100 * time.Second)

	if _, err := svc.Withdraw(ctx, "alice", pid, amt(501)); !errors.Is(err, staking.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, "bob", pid, amt(1)); !errors.Is(err, staking.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

// --- Withdraw: round trip and fee ---

func TestWithdraw_RoundTripZeroFee(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(100 * time.Second)

	res, err := svc.Withdraw(ctx, "alice", pid, amt(1000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.Fee.IsZero() || res.Net.String() != "1000" {
		t.Errorf("fee = %s, net = %s, want 0 and 1000", res.Fee, res.Net)
	}
	if !res.Position.Amount.IsZero() {
		t.Errorf("position amount = %s, want 0", res.Position.Amount)
	}

	// With zero fee the user gets exactly the deposit back.
	bal, _ := vault.Balance(ctx, "alice")
	if bal.String() != "1000" {
		t.Errorf("alice balance = %s, want 1000", bal)
	}
}

func TestWithdraw_FeeRouted(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.SetFee(ctx, owner, 25, "fee-sink"); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(100 * time.Second)

	res, err := svc.Withdraw(ctx, "alice", pid, amt(1000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Fee.String() != "25" || res.Net.String() != "975" {
		t.Errorf("fee = %s, net = %s, want 25 and 975", res.Fee, res.Net)
	}

	sink, _ := vault.Balance(ctx, "fee-sink")
	if sink.String() != "25" {
		t.Errorf("fee sink = %s, want 25", sink)
	}
	user, _ := vault.Balance(ctx, "alice")
	if user.String() != "975" {
		t.Errorf("alice balance = %s, want 975", user)
	}
}

func TestSetFee_OutOfRange(t *testing.T) {
	svc, _, _, _ := newTestEnv(t)
	if _, err := svc.SetFee(context.Background(), owner, 1001, "fee-sink"); !errors.Is(err, staking.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

// --- Reward accrual ---

func TestWithdraw_PaysAccruedReward(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()

	p := defaultPool()
	p.RewardPerBlock = amt(10)
	pid := addPool(t, svc, vault, p, "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(100 * time.Second)

	// Sole staker over 100 blocks at 10/block earns 1000.
	res, err := svc.Withdraw(ctx, "alice", pid, amt(1000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Reward.String() != "1000" {
		t.Errorf("reward = %s, want 1000", res.Reward)
	}
	if !res.Position.PendingReward.IsZero() {
		t.Errorf("pending reward = %s after payout, want 0", res.Position.PendingReward)
	}
	if res.Position.RewardClaimed.String() != "1000" {
		t.Errorf("reward claimed = %s, want 1000", res.Position.RewardClaimed)
	}

	// Principal plus minted reward.
	bal, _ := vault.Balance(ctx, "alice")
	if bal.String() != "2000" {
		t.Errorf("alice balance = %s, want 2000", bal)
	}
	cfg, _ := svc.Config(ctx)
	if cfg.TotalMintReward.String() != "1000" {
		t.Errorf("total mint reward = %s, want 1000", cfg.TotalMintReward)
	}
}

func TestReward_SplitsByShare(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()

	p := defaultPool()
	p.RewardPerBlock = amt(100)
	pid := addPool(t, svc, vault, p, "alice", 100)
	if err := vault.Mint(ctx, "bob", amt(300)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := svc.Deposit(ctx, "alice", pid, amt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if _, err := svc.Deposit(ctx, "bob", pid, amt(300)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}

	clk.advance(100 * time.Second)

	// Quarter share of 100/block × 100 blocks.
	resA, err := svc.Withdraw(ctx, "alice", pid, amt(100))
	if err != nil {
		t.Fatalf("withdraw alice: %v", err)
	}
	if resA.Reward.String() != "2500" {
		t.Errorf("alice reward = %s, want 2500", resA.Reward)
	}
}

func TestReward_ThresholdHaltsEmission(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()

	p := defaultPool()
	p.RewardPerBlock = amt(10)
	pid := addPool(t, svc, vault, p, "alice", 1000)

	// Tiny threshold: only 300 of the accrued 1000 may be emitted.
	if _, err := svc.SetRewardThreshold(ctx, owner, amt(300)); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(100 * time.Second)

	res, err := svc.Withdraw(ctx, "alice", pid, amt(1000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Reward.String() != "300" {
		t.Errorf("reward = %s, want 300 (capped at threshold)", res.Reward)
	}
}

// --- Emergency withdrawal ---

func TestEmergencyWithdraw_ForfeitsReward(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()

	p := defaultPool()
	p.RewardPerBlock = amt(10)
	pid := addPool(t, svc, vault, p, "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(999)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clk.advance(50 * time.Second) // still locked, reward accruing

	// Second deposit settles the accrued reward into pending.
	if _, err := svc.Deposit(ctx, "alice", pid, amt(1)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	pos, _ := svc.Position(ctx, pid, "alice")
	if pos.PendingReward.IsZero() {
		t.Fatal("expected nonzero pending reward before emergency")
	}

	res, err := svc.EmergencyWithdraw(ctx, "alice", pid)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if res.Net.String() != "1000" {
		t.Errorf("released = %s, want 1000", res.Net)
	}
	if !res.Fee.IsZero() {
		t.Errorf("fee = %s on emergency path, want 0", res.Fee)
	}
	if !res.Position.Amount.IsZero() || !res.Position.PendingReward.IsZero() {
		t.Errorf("position = (%s, %s), want zeroed", res.Position.Amount, res.Position.PendingReward)
	}
	if res.Reward.IsZero() {
		t.Error("forfeited reward should be reported nonzero")
	}

	// Principal back, no reward minted.
	bal, _ := vault.Balance(ctx, "alice")
	if bal.String() != "1000" {
		t.Errorf("alice balance = %s, want 1000", bal)
	}
	cfg, _ := svc.Config(ctx)
	if !cfg.TotalStaking.IsZero() {
		t.Errorf("total staking = %s, want 0", cfg.TotalStaking)
	}
}

func TestEmergencyWithdraw_Disabled(t *testing.T) {
	svc, _, vault, _ := newTestEnv(t)
	ctx := context.Background()

	p := defaultPool()
	p.EmergencyEnable = false
	pid := addPool(t, svc, vault, p, "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := svc.EmergencyWithdraw(ctx, "alice", pid); !errors.Is(err, staking.ErrEmergencyDisabled) {
		t.Fatalf("expected ErrEmergencyDisabled, got %v", err)
	}
}

func TestEmergencyWithdraw_OpenForUnlockedPools(t *testing.T) {
	svc, _, vault, _ := newTestEnv(t)
	ctx := context.Background()

	// No lock: nothing to escape, the path stays open regardless of the flag.
	p := staking.AddPoolParams{LPToken: "LP-B", LockPeriod: 0, UnlockPeriod: 10, EmergencyEnable: false}
	pid := addPool(t, svc, vault, p, "alice", 500)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := svc.EmergencyWithdraw(ctx, "alice", pid); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
}

// --- Contract scenario ---

func TestScenario_DepositWithdrawEmergency(t *testing.T) {
	svc, _, vault, clk := newTestEnv(t)
	ctx := context.Background()
	pid := addPool(t, svc, vault, defaultPool(), "alice", 1000)

	if _, err := svc.Deposit(ctx, "alice", pid, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	pos, _ := svc.Position(ctx, pid, "alice")
	pool, _ := svc.Pool(ctx, pid)
	if pos.Amount.String() != "1000" || pool.Amount.String() != "1000" {
		t.Fatalf("after deposit: position = %s, pool = %s, want 1000/1000", pos.Amount, pool.Amount)
	}

	clk.advance(100 * time.Second)
	if _, err := svc.Withdraw(ctx, "alice", pid, amt(500)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	pos, _ = svc.Position(ctx, pid, "alice")
	pool, _ = svc.Pool(ctx, pid)
	if pos.Amount.String() != "500" || pool.Amount.String() != "500" {
		t.Fatalf("after withdraw: position = %s, pool = %s, want 500/500", pos.Amount, pool.Amount)
	}

	if _, err := svc.EmergencyWithdraw(ctx, "alice", pid); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	pos, _ = svc.Position(ctx, pid, "alice")
	pool, _ = svc.Pool(ctx, pid)
	if !pos.Amount.IsZero() || !pool.Amount.IsZero() {
		t.Fatalf("after emergency: position = %s, pool = %s, want 0/0", pos.Amount, pool.Amount)
	}
}

// --- Conservation ---

func TestConservation(t *testing.T) {
	svc, ms, vault, clk := newTestEnv(t)
	ctx := context.Background()

	pidA := addPool(t, svc, vault, defaultPool(), "alice", 5000)
	pB := staking.AddPoolParams{LPToken: "LP-B", LockPeriod: 0, UnlockPeriod: 10, EmergencyEnable: true}
	pidB := addPool(t, svc, vault, pB, "bob", 5000)
	if err := vault.Mint(ctx, "carol", amt(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	check := func(when string) {
		t.Helper()
		cfg, _ := svc.Config(ctx)
		pools, _ := svc.Pools(ctx)

		poolSum := amount.Zero()
		posSum := amount.Zero()
		for _, p := range pools {
			var err error
			if poolSum, err = poolSum.Add(p.Amount); err != nil {
				t.Fatalf("%s: %v", when, err)
			}
			positions, _ := ms.ListPositionsByPool(ctx, p.ID)
			for _, pos := range positions {
				if pos.Amount.Decimal().IsNegative() || pos.PendingReward.Decimal().IsNegative() {
					t.Fatalf("%s: negative balance in %d/%s", when, pos.PoolID, pos.User)
				}
				if posSum, err = posSum.Add(pos.Amount); err != nil {
					t.Fatalf("%s: %v", when, err)
				}
			}
		}
		if !cfg.TotalStaking.Equal(poolSum) || !poolSum.Equal(posSum) {
			t.Fatalf("%s: totalStaking=%s poolSum=%s positionSum=%s",
				when, cfg.TotalStaking, poolSum, posSum)
		}
	}

	check("empty")
	svc.Deposit(ctx, "alice", pidA, amt(1000))
	svc.Deposit(ctx, "bob", pidB, amt(2000))
	svc.Deposit(ctx, "carol", pidA, amt(3000))
	check("after deposits")

	clk.advance(120 * time.Second)
	if _, err := svc.Withdraw(ctx, "alice", pidA, amt(400)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := svc.Withdraw(ctx, "bob", pidB, amt(2000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	check("after withdrawals")

	if _, err := svc.EmergencyWithdraw(ctx, "carol", pidA); err != nil {
		t.Fatalf("emergency: %v", err)
	}
	check("after emergency")
}
