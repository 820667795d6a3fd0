package summary_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/testutil"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

func named(name string, n int) []inventory.Item {
	out := make([]inventory.Item, n)
	for i := range out {
		out[i] = inventory.Item{AppID: 440, ContextID: "2", AssetID: name + string(rune('a'+i)), MarketName: name}
	}
	return out
}

func TestBuild_GroupsAndTotals(t *testing.T) {
	var items []inventory.Item
	items = append(items, named("Mann Co. Supply Crate Key", 2)...)
	items = append(items, named("Refined Metal", 3)...)
	items = append(items, named("Scrap Metal", 1)...)
	items = append(items, named("Team Captain", 1)...)

	s := summary.Build(items, summary.BuildOptions{})
	assert.Equal(t, 7, s.Items)
	assert.Equal(t, 2, s.Keys)
	assert.Equal(t, 28, s.MetalUnits)
	assert.False(t, s.HasValue)
	assert.Equal(t, []summary.Group{
		{MarketName: "Refined Metal", Count: 3},
		{MarketName: "Mann Co. Supply Crate Key", Count: 2},
		{MarketName: "Scrap Metal", Count: 1},
		{MarketName: "Team Captain", Count: 1},
	}, s.Groups)
}

func TestBuild_ValueUsesKeyPrice(t *testing.T) {
	items := append(named("Mann Co. Supply Crate Key", 1), named("Reclaimed Metal", 1)...)
	s := summary.Build(items, summary.BuildOptions{KeyPrice: 540})
	require.True(t, s.HasValue)
	assert.Equal(t, 543, s.Value)
	assert.Contains(t, s.Lines(), "total value 60.33 ref")
}

func TestSummary_LinesEmpty(t *testing.T) {
	assert.Equal(t, []string{"(nothing)"}, summary.Build(nil, summary.BuildOptions{}).Lines())
}

// harness counts recomputations; deferred ones run on timer goroutines.
type harness struct {
	clk       *clockwork.FakeClock
	s         *summary.Summarizer
	count     atomic.Int64
	recompute atomic.Int64
}

func newHarness(t *testing.T, metrics *observability.Metrics) *harness {
	h := &harness{clk: testutil.NewFakeClock()}
	h.s = summary.NewSummarizer(h.clk, summary.DefaultPolicy(),
		func() int { return int(h.count.Load()) },
		func() { h.recompute.Add(1) },
		zaptest.NewLogger(t), metrics)
	return h
}

func (h *harness) recomputes() int { return int(h.recompute.Load()) }

// fires advances past the scheduled recomputation and waits for it to run.
func (h *harness) fires(t *testing.T, d time.Duration, want int) {
	t.Helper()
	h.clk.Advance(d)
	testutil.Settled(t, func() bool { return h.recomputes() == want }, "want %d recomputes", want)
}

func TestSummarizer_FirstNotifyIsImmediate(t *testing.T) {
	h := newHarness(t, nil)
	h.count.Store(1000)
	h.s.Notify()
	assert.Equal(t, 1, h.recomputes())
	_, computed := h.s.LastComputedAt()
	assert.True(t, computed)
}

func TestSummarizer_SmallOfferAlwaysImmediate(t *testing.T) {
	h := newHarness(t, nil)
	h.count.Store(204)
	for i := 0; i < 5; i++ {
		h.s.Notify()
		h.clk.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 5, h.recomputes())
	assert.False(t, h.s.Scheduled())
}

func TestSummarizer_LargeOfferDefers(t *testing.T) {
	h := newHarness(t, nil)
	h.count.Store(205)
	h.s.Notify()
	require.Equal(t, 1, h.recomputes())

	h.clk.Advance(100 * time.Millisecond)
	h.s.Notify()
	assert.Equal(t, 1, h.recomputes())
	assert.True(t, h.s.Scheduled())
	testutil.WaitTimers(t, h.clk, 1)

	h.clk.Advance(399 * time.Millisecond)
	assert.Equal(t, 1, h.recomputes())
	h.fires(t, time.Millisecond, 2)
	testutil.Settled(t, func() bool { return !h.s.Scheduled() })
	last, _ := h.s.LastComputedAt()
	assert.Equal(t, h.clk.Now(), last)
}

func TestSummarizer_NewerNotificationSupersedes(t *testing.T) {
	m, err := observability.NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	h := newHarness(t, m)
	h.count.Store(500)
	h.s.Notify()

	h.clk.Advance(50 * time.Millisecond)
	h.s.Notify()
	h.clk.Advance(100 * time.Millisecond)
	h.s.Notify()
	testutil.WaitTimers(t, h.clk, 1)

	h.clk.Advance(350 * time.Millisecond)
	assert.Equal(t, 1, h.recomputes(), "first schedule must have been cancelled")
	h.fires(t, 50*time.Millisecond, 2)
	testutil.WaitTimers(t, h.clk, 0)
	h.clk.Advance(time.Second)
	assert.Equal(t, 2, h.recomputes())

	assert.Equal(t, 1.0, promtest.ToFloat64(m.SummarySuperseded))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.SummaryRecomputes.WithLabelValues("immediate")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.SummaryRecomputes.WithLabelValues("deferred")))
}

func TestSummarizer_StaleNotificationCancelsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.count.Store(500)
	h.s.Notify()
	h.clk.Advance(100 * time.Millisecond)
	h.s.Notify()
	require.True(t, h.s.Scheduled())

	h.clk.Advance(150 * time.Millisecond)
	h.s.Notify()
	assert.Equal(t, 2, h.recomputes())
	assert.False(t, h.s.Scheduled())
	testutil.WaitTimers(t, h.clk, 0)

	h.clk.Advance(time.Second)
	assert.Equal(t, 2, h.recomputes())
}

func TestSummarizer_StopCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.count.Store(500)
	h.s.Notify()
	h.clk.Advance(10 * time.Millisecond)
	h.s.Notify()
	h.s.Stop()
	testutil.WaitTimers(t, h.clk, 0)

	h.clk.Advance(time.Second)
	h.s.Notify()
	assert.Equal(t, 1, h.recomputes())
	assert.False(t, h.s.Scheduled())
}

func TestProperty_DebounceDecisions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clk := testutil.NewFakeClock()
		var count, recomputes atomic.Int64
		s := summary.NewSummarizer(clk, summary.DefaultPolicy(),
			func() int { return int(count.Load()) }, func() { recomputes.Add(1) }, nil, nil)

		var due time.Time
		scheduled := false
		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			count.Store(int64(rapid.IntRange(0, 1000).Draw(rt, "count")))
			before := recomputes.Load()
			last, computed := s.LastComputedAt()
			now := clk.Now()
			s.Notify()

			immediate := !computed || now.Sub(last) > 200*time.Millisecond || count.Load() <= 204
			if immediate != (recomputes.Load() == before+1) {
				rt.Fatalf("step %d: immediate=%v but recomputes went %d -> %d", i, immediate, before, recomputes.Load())
			}
			if immediate {
				scheduled = false
			} else {
				scheduled = true
				due = now.Add(400 * time.Millisecond)
			}
			if s.Scheduled() != scheduled {
				rt.Fatalf("step %d: scheduled=%v, want %v", i, s.Scheduled(), scheduled)
			}

			clk.Advance(time.Duration(rapid.IntRange(0, 500).Draw(rt, "gap")) * time.Millisecond)
			if scheduled && !clk.Now().Before(due) {
				// Exactly one deferred recomputation fires for the latest schedule.
				want := before + 1
				testutil.Settled(rt, func() bool { return !s.Scheduled() && recomputes.Load() == want })
				scheduled = false
			}
		}
	})
}
