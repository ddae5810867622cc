package spacedrep

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Default interval bounds in days.
const (
	DefaultMinInterval = 1
	DefaultMaxInterval = 36500
)

// MaxIntervalLimit is the largest accepted maximum interval in days. Due
// dates are computed with time.Duration, which overflows past about 106751
// days.
const MaxIntervalLimit = 36500

// fuzzThreshold is the smallest interval (days) that receives jitter.
const fuzzThreshold = 2.5

type fuzzRange struct {
	start, end float64
	factor     float64
}

// Each tier adds factor days of jitter per day of interval inside [start, end).
var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// IntervalPolicy turns raw day counts into integer intervals inside
// [min, max], optionally jittered.
type IntervalPolicy struct {
	min, max int
}

// NewIntervalPolicy returns a policy bounded by minInterval and maxInterval.
func NewIntervalPolicy(minInterval, maxInterval int) (IntervalPolicy, error) {
	if minInterval < 1 {
		return IntervalPolicy{}, fmt.Errorf("%w: minimum interval %d must be at least 1 day", ErrConfig, minInterval)
	}
	if maxInterval > MaxIntervalLimit {
		return IntervalPolicy{}, fmt.Errorf("%w: maximum interval %d exceeds the limit of %d days", ErrConfig, maxInterval, MaxIntervalLimit)
	}
	if minInterval > maxInterval {
		return IntervalPolicy{}, fmt.Errorf("%w: minimum interval %d exceeds maximum interval %d", ErrConfig, minInterval, maxInterval)
	}
	return IntervalPolicy{min: minInterval, max: maxInterval}, nil
}

// Min returns the lower bound in days.
func (p IntervalPolicy) Min() int { return p.min }

// Max returns the upper bound in days.
func (p IntervalPolicy) Max() int { return p.max }

// Bounded rounds rawDays to the nearest day and clamps it to the bounds.
func (p IntervalPolicy) Bounded(rawDays float64) int {
	if math.IsNaN(rawDays) {
		return p.min
	}
	if rawDays >= float64(p.max) {
		return p.max
	}
	return p.clamp(int(math.Round(rawDays)))
}

// Fuzzed jitters interval by a window that grows with the interval length.
// The same interval and seed always give the same result, and the result
// stays inside the policy bounds.
func (p IntervalPolicy) Fuzzed(interval int, seed uint64) int {
	if float64(interval) < fuzzThreshold {
		return p.clamp(interval)
	}
	lo, hi := p.fuzzWindow(interval)
	if lo >= hi {
		return p.clamp(lo)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return p.clamp(lo + rng.IntN(hi-lo+1))
}

// fuzzWindow returns the inclusive range of candidate intervals.
func (p IntervalPolicy) fuzzWindow(interval int) (lo, hi int) {
	ivl := float64(interval)
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(ivl, r.end)-r.start, 0)
	}
	lo = max(2, int(math.Round(ivl-delta)))
	hi = min(int(math.Round(ivl+delta)), p.max)
	return min(lo, hi), hi
}

func (p IntervalPolicy) clamp(days int) int {
	return min(max(days, p.min), p.max)
}

// FuzzSeed derives a seed from the identity of one review, so that items
// reviewed together spread out while the same review always gets the same
// interval.
func FuzzSeed(itemID uuid.UUID, reviewedAt time.Time) uint64 {
	var buf [24]byte
	copy(buf[:16], itemID[:])
	binary.LittleEndian.PutUint64(buf[16:], uint64(reviewedAt.UnixNano()))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}
