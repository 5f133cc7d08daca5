package scheduler

import "time"

// Clock abstracts the passage of time so the scheduler's day rollover and
// learn-ahead logic can be driven deterministically in tests.
type Clock interface {
	NowS() int64
	NowMS() int64
}

// SystemClock is the production Clock, backed by the OS clock.
type SystemClock struct{}

func (SystemClock) NowS() int64  { return time.Now().Unix() }
func (SystemClock) NowMS() int64 { return time.Now().UnixMilli() }

// ManualClock is a Clock a test harness can advance explicitly. It is
// exported because spec callers are expected to drive end-to-end scenarios
// against a fixed, advanceable clock (see update_lrn_cutoff's exposure for
// the same reason).
type ManualClock struct {
	ms int64
}

// NewManualClock returns a clock starting at the given epoch second.
func NewManualClock(startS int64) *ManualClock {
	return &ManualClock{ms: startS * 1000}
}

func (c *ManualClock) NowS() int64  { return c.ms / 1000 }
func (c *ManualClock) NowMS() int64 { return c.ms }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.ms += d.Milliseconds()
}

// Set pins the clock to the given epoch second.
func (c *ManualClock) Set(epochS int64) {
	c.ms = epochS * 1000
}
