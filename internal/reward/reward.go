// Package reward implements the proportional reward-accrual routine shared
// by every mutating ledger operation.
//
// A position earns rewardPerBlock × elapsedBlocks × (stake / totalStaked)
// for the interval since its last settlement. One block corresponds to one
// elapsed second. Accrual must settle — and the checkpoint advance — before
// any balance mutation, so reward earned under the old proportion is never
// recomputed under the new one.
//
// All values use the fixed-point amount type — never float64 for money.
// Division truncates toward zero; dust below one base unit is not emitted.
package reward

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/port3/staking-engine/internal/amount"
)

// Throttle selects what happens to emission once cumulative minted reward
// reaches the configured threshold. A deployment parameter, not a fixed rule.
type Throttle int

const (
	// ThrottleHalt stops emission entirely at the threshold.
	ThrottleHalt Throttle = iota

	// ThrottleHalve halves emission past the threshold.
	ThrottleHalve
)

// ParseThrottle maps a config string to a Throttle.
func ParseThrottle(s string) (Throttle, error) {
	switch s {
	case "", "halt":
		return ThrottleHalt, nil
	case "halve":
		return ThrottleHalve, nil
	}
	return ThrottleHalt, fmt.Errorf("reward: unknown throttle policy %q", s)
}

// Accrue computes the reward delta for one position over the interval
// [lastSettled, now). Returns zero when totalStaked is zero: reward for an
// empty pool accrues to nobody and is not retained.
func Accrue(rewardPerBlock amount.Amount, lastSettled, now time.Time, stake, totalStaked amount.Amount) (amount.Amount, error) {
	if totalStaked.IsZero() || stake.IsZero() || rewardPerBlock.IsZero() {
		return amount.Zero(), nil
	}
	elapsed := now.Unix() - lastSettled.Unix()
	if elapsed <= 0 {
		return amount.Zero(), nil
	}

	// rewardPerBlock × blocks × stake / totalStaked, floored to base units.
	gross := rewardPerBlock.Decimal().
		Mul(decimal.NewFromInt(elapsed)).
		Mul(stake.Decimal())
	q, _ := gross.QuoRem(totalStaked.Decimal(), 0)
	return amount.FromDecimal(q)
}

// ApplyThrottle limits a freshly accrued delta against the emission
// threshold. minted is the cumulative reward issued so far.
func ApplyThrottle(policy Throttle, delta, minted, threshold amount.Amount) (amount.Amount, error) {
	if threshold.IsZero() {
		return delta, nil
	}
	headroom, err := threshold.Sub(minted)
	if err != nil {
		// Already past the threshold.
		headroom = amount.Zero()
	}

	switch policy {
	case ThrottleHalve:
		if !headroom.IsZero() && delta.LessThan(headroom) {
			return delta, nil
		}
		return delta.DivInt(2)
	default: // ThrottleHalt
		if delta.GreaterThan(headroom) {
			return headroom, nil
		}
		return delta, nil
	}
}
