package reward_test

import (
	"testing"
	"time"

	"github.com/port3/staking-engine/internal/amount"
	"github.com/port3/staking-engine/internal/reward"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestAccrue_FullShare(t *testing.T) {
	// Sole staker earns the whole emission: 10/block × 60 blocks.
	got, err := reward.Accrue(
		amount.MustNew(10),
		t0, t0.Add(60*time.Second),
		amount.MustNew(1000), amount.MustNew(1000),
	)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got.String() != "600" {
		t.Errorf("delta = %s, want 600", got)
	}
}

func TestAccrue_ProportionalShare(t *testing.T) {
	// 250 of 1000 staked → quarter share of 10×100 blocks = 250.
	got, err := reward.Accrue(
		amount.MustNew(10),
		t0, t0.Add(100*time.Second),
		amount.MustNew(250), amount.MustNew(1000),
	)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got.String() != "250" {
		t.Errorf("delta = %s, want 250", got)
	}
}

func TestAccrue_TruncatesDust(t *testing.T) {
	// 1 of 3 staked over 1 block at 1/block: floor(1/3) = 0.
	got, err := reward.Accrue(
		amount.MustNew(1),
		t0, t0.Add(time.Second),
		amount.MustNew(1), amount.MustNew(3),
	)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("delta = %s, want 0", got)
	}
}

func TestAccrue_EmptyPool(t *testing.T) {
	got, err := reward.Accrue(
		amount.MustNew(10),
		t0, t0.Add(time.Hour),
		amount.Zero(), amount.Zero(),
	)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("empty pool accrued %s, want 0", got)
	}
}

func TestAccrue_NoElapsedTime(t *testing.T) {
	got, err := reward.Accrue(
		amount.MustNew(10),
		t0, t0,
		amount.MustNew(100), amount.MustNew(100),
	)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("zero elapsed accrued %s, want 0", got)
	}
}

func TestApplyThrottle_Halt(t *testing.T) {
	cases := []struct {
		name                     string
		delta, minted, threshold int64
		want                     string
	}{
		{"under threshold", 100, 0, 1000, "100"},
		{"caps at headroom", 100, 950, 1000, "50"},
		{"at threshold", 100, 1000, 1000, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reward.ApplyThrottle(reward.ThrottleHalt,
				amount.MustNew(tc.delta), amount.MustNew(tc.minted), amount.MustNew(tc.threshold))
			if err != nil {
				t.Fatalf("throttle: %v", err)
			}
			if got.String() != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestApplyThrottle_Halve(t *testing.T) {
	// Past the threshold, emission continues at half rate.
	got, err := reward.ApplyThrottle(reward.ThrottleHalve,
		amount.MustNew(100), amount.MustNew(1000), amount.MustNew(1000))
	if err != nil {
		t.Fatalf("throttle: %v", err)
	}
	if got.String() != "50" {
		t.Errorf("got %s, want 50", got)
	}

	// Under the threshold, emission is untouched.
	got, err = reward.ApplyThrottle(reward.ThrottleHalve,
		amount.MustNew(100), amount.MustNew(0), amount.MustNew(1000))
	if err != nil {
		t.Fatalf("throttle: %v", err)
	}
	if got.String() != "100" {
		t.Errorf("got %s, want 100", got)
	}
}

func TestApplyThrottle_ZeroThresholdDisables(t *testing.T) {
	got, err := reward.ApplyThrottle(reward.ThrottleHalt,
		amount.MustNew(100), amount.MustNew(999999), amount.Zero())
	if err != nil {
		t.Fatalf("throttle: %v", err)
	}
	if got.String() != "100" {
		t.Errorf("got %s, want 100", got)
	}
}

func TestParseThrottle(t *testing.T) {
	if p, err := reward.ParseThrottle(""); err != nil || p != reward.ThrottleHalt {
		t.Errorf("empty = (%v, %v), want halt", p, err)
	}
	if p, err := reward.ParseThrottle("halve"); err != nil || p != reward.ThrottleHalve {
		t.Errorf("halve = (%v, %v)", p, err)
	}
	if _, err := reward.ParseThrottle("bogus"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
