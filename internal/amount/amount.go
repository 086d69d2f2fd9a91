// Package amount provides the fixed-point quantity type used for all
// staked and reward balances. An Amount is a non-negative integer count
// of base units (1 token = 1e9 base units) backed by shopspring/decimal —
// never float64 for money.
//
// Every arithmetic operation is range-checked: results below zero or
// above MaxSupply are rejected rather than wrapped, so ledger totals can
// never silently corrupt.
package amount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// BaseUnitsPerToken is the number of base units in one whole token.
const BaseUnitsPerToken int64 = 1_000_000_000

var (
	// ErrOverflow is returned when a result would exceed MaxSupply.
	ErrOverflow = errors.New("amount: arithmetic overflow")

	// ErrNegative is returned when a result would fall below zero.
	ErrNegative = errors.New("amount: result would be negative")

	// ErrNotBaseUnits is returned when parsing a value that is fractional
	// or negative and therefore not a valid base-unit count.
	ErrNotBaseUnits = errors.New("amount: value is not a non-negative integer of base units")

	// maxSupply is the largest representable balance: the full u64 range
	// of the on-chain token representation.
	maxSupply = decimal.RequireFromString("18446744073709551615")
)

// Amount is a quantity of the staked asset in base units. The zero value
// is a valid zero balance.
type Amount struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// New returns an Amount of n base units.
func New(n int64) (Amount, error) {
	if n < 0 {
		return Amount{}, ErrNegative
	}
	return Amount{d: decimal.NewFromInt(n)}, nil
}

// MustNew is New for constants known to be valid; panics otherwise.
func MustNew(n int64) Amount {
	a, err := New(n)
	if err != nil {
		panic(err)
	}
	return a
}

// FromTokens returns an Amount of n whole tokens.
func FromTokens(n int64) (Amount, error) {
	if n < 0 {
		return Amount{}, ErrNegative
	}
	d := decimal.NewFromInt(n).Mul(decimal.NewFromInt(BaseUnitsPerToken))
	if d.GreaterThan(maxSupply) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: d}, nil
}

// FromDecimal validates that d is a non-negative integer within range.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.IsInteger() || d.IsNegative() {
		return Amount{}, ErrNotBaseUnits
	}
	if d.GreaterThan(maxSupply) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: d}, nil
}

// FromString parses a decimal string of base units.
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrNotBaseUnits, s)
	}
	return FromDecimal(d)
}

// Add returns a + b, failing with ErrOverflow past MaxSupply.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a.d.Add(b.d)
	if sum.GreaterThan(maxSupply) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: sum}, nil
}

// Sub returns a - b, failing with ErrNegative below zero.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a.d.Sub(b.d)
	if diff.IsNegative() {
		return Amount{}, ErrNegative
	}
	return Amount{d: diff}, nil
}

// MulInt returns a × n.
func (a Amount) MulInt(n int64) (Amount, error) {
	if n < 0 {
		return Amount{}, ErrNegative
	}
	prod := a.d.Mul(decimal.NewFromInt(n))
	if prod.GreaterThan(maxSupply) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: prod}, nil
}

// DivInt returns floor(a / n). Division by zero is rejected.
func (a Amount) DivInt(n int64) (Amount, error) {
	if n <= 0 {
		return Amount{}, fmt.Errorf("amount: division by non-positive %d", n)
	}
	q, _ := a.d.QuoRem(decimal.NewFromInt(n), 0)
	return Amount{d: q}, nil
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String renders the base-unit count as a decimal integer string.
func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a JSON string of base units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or bare number of base units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
