package testutil

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// NewFakeClock returns a fake clock starting at a fixed instant.
func NewFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
}

// WaitTimers blocks until clk has exactly n pending timers.
//
// Postcondition: returns only once the count is reached, or fails t after two
// seconds.
func WaitTimers(t require.TestingT, clk *clockwork.FakeClock, n int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, n), "waiting for %d pending timers", n)
}

// AdvanceUntil moves clk forward by step until cond holds. Fake timer
// callbacks run on their own goroutines, so each step yields briefly to let
// them finish and schedule their successors.
//
// Postcondition: cond() is true, or t has failed after two seconds.
func AdvanceUntil(t require.TestingT, clk *clockwork.FakeClock, step time.Duration, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Errorf("condition not met; fake clock at %s", clk.Now().Format(time.RFC3339Nano))
			t.FailNow()
			return
		}
		clk.Advance(step)
		time.Sleep(200 * time.Microsecond)
	}
}

// Settled waits for cond to hold without moving any clock, failing t after
// two seconds.
func Settled(t require.TestingT, cond func() bool, msgAndArgs ...interface{}) {
	require.Eventually(t, cond, 2*time.Second, time.Millisecond, msgAndArgs...)
}
