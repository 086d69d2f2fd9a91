// Package model defines the core domain types shared across the staking
// engine. All balances use the fixed-point amount type — never float64
// for money.
package model

import (
	"fmt"
	"time"

	"github.com/port3/staking-engine/internal/amount"
)

// DefaultRewardThreshold is the protocol default for Config.RewardThreshold:
// 50000 whole tokens in base units.
var DefaultRewardThreshold = amount.MustNew(50000 * amount.BaseUnitsPerToken)

// Config is the deployment-wide singleton: admin identity, global pause
// gate, and the running totals every pool contributes to.
// Invariant: TotalStaking == Σ pool.Amount == Σ position.Amount.
type Config struct {
	Owner              string        `json:"owner" db:"owner"`
	PoolCount          uint64        `json:"pool_count" db:"pool_count"`
	IsPaused           bool          `json:"is_paused" db:"is_paused"`
	TotalMintReward    amount.Amount `json:"total_mint_reward" db:"total_mint_reward"`
	TotalEthMintReward amount.Amount `json:"total_eth_mint_reward" db:"total_eth_mint_reward"`
	FeePerThousand     int64         `json:"fee_per_thousand" db:"fee_per_thousand"`
	FeeAccount         string        `json:"fee_account" db:"fee_account"`
	VaultContract      string        `json:"vault_contract" db:"vault_contract"`
	TotalStaking       amount.Amount `json:"total_staking" db:"total_staking"`
	RewardThreshold    amount.Amount `json:"reward_threshold" db:"reward_threshold"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
}

// Pool is one staking market: the asset it accepts, its reward emission
// rate, and its lock/unlock timing. Amount is the pool-wide staked total.
// Invariant: Amount == Σ position.Amount for this pool.
type Pool struct {
	ID              uint64        `json:"id" db:"id"`
	LPToken         string        `json:"lp_token" db:"lp_token"`
	RewardPerBlock  amount.Amount `json:"reward_per_block" db:"reward_per_block"`
	LockPeriod      int64         `json:"lock_period" db:"lock_period"`     // seconds
	UnlockPeriod    int64         `json:"unlock_period" db:"unlock_period"` // seconds
	EmergencyEnable bool          `json:"emergency_enable" db:"emergency_enable"`
	Amount          amount.Amount `json:"amount" db:"amount"`
	LastRewardTime  time.Time     `json:"last_reward_time" db:"last_reward_time"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// CustodyAccount is the vault account holding this pool's staked assets.
func (p *Pool) CustodyAccount() string {
	return fmt.Sprintf("pool:%d", p.ID)
}

// Position is one user's stake record within one pool. The record persists
// as an empty position after full withdrawal for historical lookup.
type Position struct {
	PoolID          uint64        `json:"pool_id" db:"pool_id"`
	User            string        `json:"user" db:"user_id"`
	Amount          amount.Amount `json:"amount" db:"amount"`
	PendingReward   amount.Amount `json:"pending_reward" db:"pending_reward"`
	RewardClaimed   amount.Amount `json:"reward_claimed" db:"reward_claimed"`
	DepositTime     time.Time     `json:"deposit_time" db:"deposit_time"`
	LastHarvestTime time.Time     `json:"last_harvest_time" db:"last_harvest_time"`
}

// Ledger entry kinds.
const (
	KindDeposit           = "deposit"
	KindWithdraw          = "withdraw"
	KindEmergencyWithdraw = "emergency_withdraw"
)

// LedgerEntry is an immutable record of one mutating operation.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID        string        `json:"id" db:"id"`
	User      string        `json:"user" db:"user_id"`
	PoolID    uint64        `json:"pool_id" db:"pool_id"`
	Kind      string        `json:"kind" db:"kind"`
	Amount    amount.Amount `json:"amount" db:"amount"` // gross principal moved
	Fee       amount.Amount `json:"fee" db:"fee"`
	Reward    amount.Amount `json:"reward" db:"reward"` // paid out, or forfeited on the emergency path
	Timestamp time.Time     `json:"timestamp" db:"timestamp"`
}
