package spacedrep

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustPolicy(t *testing.T, lo, hi int) IntervalPolicy {
	t.Helper()
	p, err := NewIntervalPolicy(lo, hi)
	if err != nil {
		t.Fatalf("NewIntervalPolicy(%d, %d): %v", lo, hi, err)
	}
	return p
}

func TestNewIntervalPolicy_ConfigError(t *testing.T) {
	tests := []struct{ lo, hi int }{
		{10, 5},
		{0, 5},
		{-1, 5},
		{1, MaxIntervalLimit + 1},
		{1, 200000},
	}
	for _, tt := range tests {
		if _, err := NewIntervalPolicy(tt.lo, tt.hi); !errors.Is(err, ErrConfig) {
			t.Errorf("NewIntervalPolicy(%d, %d) error = %v, want ErrConfig", tt.lo, tt.hi, err)
		}
	}
}

func TestBounded(t *testing.T) {
	p := mustPolicy(t, 1, 365)
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 1},
		{-4, 1},
		{0.4, 1},
		{1.5, 2},
		{12.49, 12},
		{364.6, 365},
		{1000, 365},
		{math.Inf(1), 365},
		{math.NaN(), 1},
	}
	for _, tt := range tests {
		if got := p.Bounded(tt.raw); got != tt.want {
			t.Errorf("Bounded(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestBounded_RaisedMinimum(t *testing.T) {
	p := mustPolicy(t, 3, 30)
	if p.Min() != 3 || p.Max() != 30 {
		t.Errorf("bounds = [%d, %d], want [3, 30]", p.Min(), p.Max())
	}
	if got := p.Bounded(1); got != 3 {
		t.Errorf("Bounded(1) = %d, want 3", got)
	}
}

func TestFuzzed_SmallIntervalsUnchanged(t *testing.T) {
	p := mustPolicy(t, 1, 36500)
	for _, ivl := range []int{1, 2} {
		for seed := uint64(0); seed < 20; seed++ {
			if got := p.Fuzzed(ivl, seed); got != ivl {
				t.Errorf("Fuzzed(%d, %d) = %d, want unchanged", ivl, seed, got)
			}
		}
	}
}

func TestFuzzed_Deterministic(t *testing.T) {
	p := mustPolicy(t, 1, 36500)
	for seed := uint64(1); seed < 50; seed++ {
		a := p.Fuzzed(100, seed)
		b := p.Fuzzed(100, seed)
		if a != b {
			t.Fatalf("Fuzzed(100, %d) not deterministic: %d vs %d", seed, a, b)
		}
	}
}

func TestFuzzed_WithinWindow(t *testing.T) {
	p := mustPolicy(t, 1, 36500)
	// delta(100) = 1 + 0.15*4.5 + 0.10*13 + 0.05*80 = 6.975
	seen := make(map[int]bool)
	for seed := uint64(0); seed < 500; seed++ {
		got := p.Fuzzed(100, seed)
		if got < 93 || got > 107 {
			t.Fatalf("Fuzzed(100, %d) = %d outside [93, 107]", seed, got)
		}
		seen[got] = true
	}
	if len(seen) < 5 {
		t.Errorf("fuzz produced only %d distinct intervals, want spread", len(seen))
	}
}

func TestFuzzed_RespectsMaximum(t *testing.T) {
	p := mustPolicy(t, 1, 50)
	for seed := uint64(0); seed < 200; seed++ {
		if got := p.Fuzzed(50, seed); got > 50 || got < 1 {
			t.Fatalf("Fuzzed(50, %d) = %d outside [1, 50]", seed, got)
		}
	}
}

func TestFuzzSeed(t *testing.T) {
	id := uuid.MustParse("6f1c7d1e-8e1b-4a43-9f33-6a0f3cbd2c11")
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

	if FuzzSeed(id, at) != FuzzSeed(id, at) {
		t.Error("FuzzSeed not deterministic")
	}
	if FuzzSeed(id, at) == FuzzSeed(id, at.Add(time.Second)) {
		t.Error("FuzzSeed ignores the review time")
	}
	other := uuid.MustParse("0a5d3cf2-1111-4b55-8c2e-0d7e9f3b4a21")
	if FuzzSeed(id, at) == FuzzSeed(other, at) {
		t.Error("FuzzSeed ignores the item id")
	}
}
