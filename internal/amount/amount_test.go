package amount_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/port3/staking-engine/internal/amount"
)

func TestNew_RejectsNegative(t *testing.T) {
	if _, err := amount.New(-1); !errors.Is(err, amount.ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}

func TestAddSub_RoundTrip(t *testing.T) {
	a := amount.MustNew(1000)
	b := amount.MustNew(400)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.String() != "1400" {
		t.Errorf("sum = %s, want 1400", sum)
	}

	diff, err := sum.Sub(b)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if !diff.Equal(a) {
		t.Errorf("diff = %s, want %s", diff, a)
	}
}

func TestSub_BelowZero(t *testing.T) {
	a := amount.MustNew(100)
	b := amount.MustNew(101)
	if _, err := a.Sub(b); !errors.Is(err, amount.ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}

func TestAdd_Overflow(t *testing.T) {
	max, err := amount.FromString("18446744073709551615")
	if err != nil {
		t.Fatalf("parse max: %v", err)
	}
	one := amount.MustNew(1)
	if _, err := max.Add(one); !errors.Is(err, amount.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestFromDecimal_RejectsFractional(t *testing.T) {
	if _, err := amount.FromDecimal(decimal.RequireFromString("1.5")); !errors.Is(err, amount.ErrNotBaseUnits) {
		t.Fatalf("expected ErrNotBaseUnits, got %v", err)
	}
}

func TestFromTokens(t *testing.T) {
	a, err := amount.FromTokens(50000)
	if err != nil {
		t.Fatalf("from tokens: %v", err)
	}
	if a.String() != "50000000000000" {
		t.Errorf("50000 tokens = %s base units, want 50000000000000", a)
	}
}

func TestDivInt_Floors(t *testing.T) {
	a := amount.MustNew(1001)
	q, err := a.DivInt(1000)
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if q.String() != "1" {
		t.Errorf("floor(1001/1000) = %s, want 1", q)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	a := amount.MustNew(123456789)
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"123456789"` {
		t.Errorf("json = %s", data)
	}

	var back amount.Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("round trip = %s, want %s", back, a)
	}

	// Bare numbers are accepted too.
	if err := json.Unmarshal([]byte(`1000`), &back); err != nil {
		t.Fatalf("unmarshal bare: %v", err)
	}
	if back.String() != "1000" {
		t.Errorf("bare = %s, want 1000", back)
	}
}
