// Package expiry renders a countdown to an order's deposit deadline.
// It is informational only and never changes flow state.
package expiry

import (
	"context"
	"time"

	"github.com/seenimoa/stackswap/pkg/utils"
)

// Tick is one countdown reading.
type Tick struct {
	Deadline  time.Time     `json:"deadline"`
	Remaining time.Duration `json:"remaining"`
	Label     string        `json:"label"`
	Expired   bool          `json:"expired"`
}

// At computes the reading for deadline at now.
func At(deadline, now time.Time) Tick {
	rem := deadline.Sub(now)
	if rem <= 0 {
		return Tick{Deadline: deadline, Label: utils.ExpiredLabel, Expired: true}
	}
	return Tick{Deadline: deadline, Remaining: rem, Label: utils.FormatMinutesSeconds(rem)}
}

// Timer emits a Tick every interval until the deadline passes or the
// context is cancelled.
type Timer struct {
	deadline time.Time
	interval time.Duration
	now      func() time.Time
}

// NewTimer creates a one-second countdown to deadline.
func NewTimer(deadline time.Time) *Timer {
	return &Timer{deadline: deadline, interval: time.Second, now: time.Now}
}

// Current returns the reading for the current time.
func (t *Timer) Current() Tick { return At(t.deadline, t.now()) }

// Run calls fn immediately and then once per interval. After the expired
// tick has been delivered it returns without further calls.
func (t *Timer) Run(ctx context.Context, fn func(Tick)) {
	tick := t.Current()
	fn(tick)
	if tick.Expired {
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick = t.Current()
			fn(tick)
			if tick.Expired {
				return
			}
		}
	}
}
