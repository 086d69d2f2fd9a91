// Package fee computes the per-mille service charge applied on orderly
// withdrawals. The emergency path exits fee-free: the charge is for an
// orderly unwind, not for leaving.
package fee

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/port3/staking-engine/internal/amount"
)

// ErrRateOutOfRange is returned when a fee rate outside [0, 1000] parts
// per thousand is submitted.
var ErrRateOutOfRange = errors.New("fee: rate must be within [0, 1000] parts per thousand")

// ValidateRate checks a fee rate at the point it is set. Withdrawal-time
// code trusts the stored rate.
func ValidateRate(perThousand int64) error {
	if perThousand < 0 || perThousand > 1000 {
		return ErrRateOutOfRange
	}
	return nil
}

// Calculate returns floor(amount × perThousand / 1000). Integer truncation
// keeps the fee on base-unit granularity; the fee never exceeds amount.
func Calculate(a amount.Amount, perThousand int64) (amount.Amount, error) {
	if err := ValidateRate(perThousand); err != nil {
		return amount.Zero(), err
	}
	// Computed in raw decimal so the ×1000 intermediate cannot trip the
	// amount range check; the final fee always fits.
	d := a.Decimal().
		Mul(decimal.NewFromInt(perThousand)).
		Div(decimal.NewFromInt(1000)).
		Floor()
	return amount.FromDecimal(d)
}

// Split returns (fee, net) for a gross withdrawal amount.
func Split(a amount.Amount, perThousand int64) (amount.Amount, amount.Amount, error) {
	f, err := Calculate(a, perThousand)
	if err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	net, err := a.Sub(f)
	if err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	return f, net, nil
}
