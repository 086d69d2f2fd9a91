package staking

import "errors"

// Engine error kinds. Every mutating operation fails with one of these
// before any state is written, so callers always learn the specific
// reason and can resubmit a corrected operation.
var (
	// ErrUnauthorized is returned when a non-owner attempts an admin op.
	ErrUnauthorized = errors.New("staking: caller is not the owner")

	// ErrAlreadyInitialized is returned when initialize is called twice.
	ErrAlreadyInitialized = errors.New("staking: already initialized")

	// ErrNotInitialized is returned when an operation arrives before
	// initialize.
	ErrNotInitialized = errors.New("staking: not initialized")

	// ErrPoolNotFound is returned when the target pool does not exist.
	ErrPoolNotFound = errors.New("staking: pool not found")

	// ErrPositionNotFound is returned when the caller has no position in
	// the target pool.
	ErrPositionNotFound = errors.New("staking: position not found")

	// ErrPaused is returned while the global pause gate is set.
	ErrPaused = errors.New("staking: deposits and withdrawals are paused")

	// ErrInvalidAmount is returned for zero or malformed amounts.
	ErrInvalidAmount = errors.New("staking: amount must be positive")

	// ErrInvalidParams is returned for invalid pool parameters.
	ErrInvalidParams = errors.New("staking: invalid pool parameters")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the
	// position's staked amount.
	ErrInsufficientBalance = errors.New("staking: insufficient staked balance")

	// ErrStillLocked is returned when withdrawing before the lock period
	// has elapsed.
	ErrStillLocked = errors.New("staking: position is still locked")

	// ErrWindowExpired is returned when withdrawing after the unlock
	// window has passed.
	ErrWindowExpired = errors.New("staking: unlock window has expired")

	// ErrEmergencyDisabled is returned when the emergency path is not
	// enabled for the pool.
	ErrEmergencyDisabled = errors.New("staking: emergency withdrawal disabled for this pool")
)
