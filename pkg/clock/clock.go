// Package clock abstracts the timers used by the session manager and the
// Telegram listener so reconnect, settle and grace delays can be driven
// deterministically in tests.
//
// Production code uses Real(). Tests use Fake() and call Advance after
// WaitForTimers has observed the timer registration:
//
//	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go mgr.Run(ctx)
//	clk.WaitForTimers(1)
//	clk.Advance(5 * time.Second)
package clock

import "time"

// Clock is the subset of the time package the session layer needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
