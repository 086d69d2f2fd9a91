// Package token defines the asset-transfer collaborator the ledger engine
// moves value through. The engine decides amounts and authorization; the
// vault executes the movement. A failed transfer aborts the surrounding
// operation before any ledger state is written.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/port3/staking-engine/internal/amount"
)

// ErrInsufficientFunds is returned when the source account cannot cover
// the transfer.
var ErrInsufficientFunds = errors.New("token: insufficient funds")

// Vault moves the staked asset between custody accounts. Implementations
// must make Transfer all-or-nothing.
type Vault interface {
	// Transfer moves amt from one account to another.
	Transfer(ctx context.Context, from, to string, amt amount.Amount) error

	// Mint credits newly issued reward tokens to an account.
	Mint(ctx context.Context, to string, amt amount.Amount) error

	// Balance reports an account's current holdings.
	Balance(ctx context.Context, account string) (amount.Amount, error)
}

// MemoryVault implements Vault with in-memory balances. Used for testing
// and development; production deployments wire the on-chain token program
// behind the same interface.
type MemoryVault struct {
	mu       sync.Mutex
	balances map[string]amount.Amount
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[string]amount.Amount)}
}

func (v *MemoryVault) Transfer(_ context.Context, from, to string, amt amount.Amount) error {
	if amt.IsZero() {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	src := v.balances[from]
	newSrc, err := src.Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, src, amt)
	}
	newDst, err := v.balances[to].Add(amt)
	if err != nil {
		return err
	}
	v.balances[from] = newSrc
	v.balances[to] = newDst
	return nil
}

func (v *MemoryVault) Mint(_ context.Context, to string, amt amount.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	newDst, err := v.balances[to].Add(amt)
	if err != nil {
		return err
	}
	v.balances[to] = newDst
	return nil
}

func (v *MemoryVault) Balance(_ context.Context, account string) (amount.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account], nil
}
