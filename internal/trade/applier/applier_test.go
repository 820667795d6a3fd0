package applier_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/testutil"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/applier"
)

// opLog records operation indices; operations after the first run on timer
// goroutines.
type opLog struct {
	mu  sync.Mutex
	got []int
}

func (l *opLog) ops(n int) []applier.Operation {
	ops := make([]applier.Operation, n)
	for i := range ops {
		i := i
		ops[i] = func() {
			l.mu.Lock()
			l.got = append(l.got, i)
			l.mu.Unlock()
		}
	}
	return ops
}

func (l *opLog) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.got...)
}

func (l *opLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.got)
}

func isDone(run *applier.Run) func() bool {
	return func() bool {
		select {
		case <-run.Done():
			return true
		default:
			return false
		}
	}
}

func TestApply_SpacesOperations(t *testing.T) {
	clk := testutil.NewFakeClock()
	a := applier.New(clk, zaptest.NewLogger(t))
	var log opLog
	var doneCalls atomic.Int32

	run := a.Apply(log.ops(3), 50*time.Millisecond, func() { doneCalls.Add(1) })
	assert.Equal(t, []int{0}, log.snapshot(), "first operation runs immediately")
	assert.Equal(t, 1, run.Applied())

	testutil.WaitTimers(t, clk, 1)
	clk.Advance(49 * time.Millisecond)
	assert.Equal(t, []int{0}, log.snapshot())

	clk.Advance(time.Millisecond)
	testutil.Settled(t, func() bool { return log.len() == 2 })
	assert.Equal(t, []int{0, 1}, log.snapshot())
	testutil.WaitTimers(t, clk, 1)
	assert.Zero(t, doneCalls.Load())

	clk.Advance(50 * time.Millisecond)
	testutil.Settled(t, isDone(run), "run must finish after the last operation")
	assert.Equal(t, []int{0, 1, 2}, log.snapshot())
	assert.EqualValues(t, 1, doneCalls.Load())
	testutil.WaitTimers(t, clk, 0)
}

func TestApplyReversed_RunsFromTheEnd(t *testing.T) {
	clk := testutil.NewFakeClock()
	a := applier.New(clk, nil)
	var log opLog
	run := a.ApplyReversed(log.ops(4), 10*time.Millisecond, nil)
	testutil.AdvanceUntil(t, clk, 10*time.Millisecond, isDone(run))
	assert.Equal(t, []int{3, 2, 1, 0}, log.snapshot())
}

func TestApply_EmptyCompletesImmediately(t *testing.T) {
	a := applier.New(testutil.NewFakeClock(), nil)
	called := false
	run := a.Apply(nil, time.Second, func() { called = true })
	assert.True(t, called)
	require.NoError(t, run.Wait(context.Background()))
	assert.NotEqual(t, run.ID.String(), "")
}

func TestRun_WaitHonoursContext(t *testing.T) {
	clk := testutil.NewFakeClock()
	a := applier.New(clk, nil)
	var log opLog
	run := a.Apply(log.ops(2), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, run.Wait(ctx), context.Canceled)

	testutil.WaitTimers(t, clk, 1)
	clk.Advance(time.Second)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, run.Wait(waitCtx))
}

func TestApply_RealClock(t *testing.T) {
	a := applier.New(clockwork.NewRealClock(), nil)
	got := make(chan int, 3)
	ops := []applier.Operation{
		func() { got <- 0 },
		func() { got <- 1 },
		func() { got <- 2 },
	}
	start := time.Now()
	run := a.Apply(ops, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, 0, <-got)
	assert.Equal(t, 1, <-got)
	assert.Equal(t, 2, <-got)
}

func TestProperty_EachOperationOnceInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		reverse := rapid.Bool().Draw(rt, "reverse")
		clk := testutil.NewFakeClock()
		a := applier.New(clk, nil)
		var log opLog
		var doneAt atomic.Int32
		doneAt.Store(-1)

		apply := a.Apply
		if reverse {
			apply = a.ApplyReversed
		}
		run := apply(log.ops(n), 20*time.Millisecond, func() { doneAt.Store(int32(log.len())) })
		testutil.AdvanceUntil(rt, clk, 20*time.Millisecond, isDone(run))

		got := log.snapshot()
		if len(got) != n || int(doneAt.Load()) != n {
			rt.Fatalf("applied %d of %d, done after %d", len(got), n, doneAt.Load())
		}
		for i, v := range got {
			want := i
			if reverse {
				want = n - 1 - i
			}
			if v != want {
				rt.Fatalf("position %d: got op %d, want %d", i, v, want)
			}
		}
	})
}
