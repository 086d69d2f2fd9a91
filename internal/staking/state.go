package staking

import (
	"time"

	"github.com/port3/staking-engine/internal/model"
)

// PositionState is the time-derived withdrawal eligibility of a position.
// It is never stored: each read recomputes it from the deposit checkpoint
// and the pool's lock/unlock timing, so stored state can never drift from
// the clock.
type PositionState int

const (
	// Active: within the lock period; ordinary withdrawal refused.
	Active PositionState = iota

	// Unlockable: lock satisfied, inside the unlock window.
	Unlockable

	// Expired: the unlock window has passed. Only the emergency path,
	// where enabled, remains available.
	Expired
)

// String returns the state name for logs and error messages.
func (s PositionState) String() string {
	switch s {
	case Active:
		return "active"
	case Unlockable:
		return "unlockable"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Classify derives the position's state at the given instant. A pool with
// no lock period is always unlockable.
func Classify(pos *model.Position, pool *model.Pool, now time.Time) PositionState {
	if pool.LockPeriod <= 0 {
		return Unlockable
	}
	elapsed := now.Unix() - pos.DepositTime.Unix()
	if elapsed < pool.LockPeriod {
		return Active
	}
	if elapsed < pool.LockPeriod+pool.UnlockPeriod {
		return Unlockable
	}
	return Expired
}
