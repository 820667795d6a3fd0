package summary

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
)

// Policy controls when a change notification recomputes immediately and when
// the recomputation is deferred.
type Policy struct {
	// StaleAfter is the age past which the last summary is recomputed at once.
	StaleAfter time.Duration
	// DeferDelay is how long a deferred recomputation waits.
	DeferDelay time.Duration
	// SmallOfferLimit is the item count at or below which recomputing is
	// always immediate.
	SmallOfferLimit int
}

// DefaultPolicy returns 200ms staleness, 400ms deferral and a 204 item limit.
func DefaultPolicy() Policy {
	return Policy{
		StaleAfter:      200 * time.Millisecond,
		DeferDelay:      400 * time.Millisecond,
		SmallOfferLimit: 204,
	}
}

// Summarizer debounces recomputation of an offer summary. A notification
// recomputes immediately when the last result is stale or the offer is small;
// otherwise it schedules one trailing recomputation, replacing any that is
// already scheduled.
type Summarizer struct {
	clock     clockwork.Clock
	policy    Policy
	count     func() int
	recompute func()
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu           sync.Mutex
	lastComputed time.Time
	computed     bool
	pending      clockwork.Timer
	generation   uint64
	stopped      bool
}

// NewSummarizer creates a Summarizer. count reports the current item count
// and recompute rebuilds the summary; neither is called with internal locks
// held.
//
// Precondition: clk, count and recompute must be non-nil.
func NewSummarizer(clk clockwork.Clock, policy Policy, count func() int, recompute func(), logger *zap.Logger, metrics *observability.Metrics) *Summarizer {
	return &Summarizer{
		clock:     clk,
		policy:    policy,
		count:     count,
		recompute: recompute,
		logger:    observability.OrNop(logger),
		metrics:   metrics,
	}
}

// Notify reports that the offer contents changed.
func (s *Summarizer) Notify() {
	n := s.count()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	stale := !s.computed || now.Sub(s.lastComputed) > s.policy.StaleAfter
	if stale || n <= s.policy.SmallOfferLimit {
		s.cancelLocked()
		s.lastComputed = now
		s.computed = true
		s.mu.Unlock()

		s.metrics.ObserveRecompute("immediate")
		s.recompute()
		return
	}

	if s.cancelLocked() {
		s.metrics.ObserveSuperseded()
	}
	gen := s.generation
	s.pending = s.clock.AfterFunc(s.policy.DeferDelay, func() { s.fire(gen) })
	s.mu.Unlock()

	s.logger.Debug("summary recompute deferred",
		zap.Int("items", n),
		zap.Duration("delay", s.policy.DeferDelay),
	)
}

// cancelLocked stops the scheduled recomputation, if any, and invalidates it.
// It reports whether a scheduled recomputation was cancelled before firing.
func (s *Summarizer) cancelLocked() bool {
	s.generation++
	if s.pending == nil {
		return false
	}
	stopped := s.pending.Stop()
	s.pending = nil
	return stopped
}

func (s *Summarizer) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.lastComputed = s.clock.Now()
	s.computed = true
	s.mu.Unlock()

	s.metrics.ObserveRecompute("deferred")
	s.recompute()
}

// Scheduled reports whether a deferred recomputation is waiting to fire.
func (s *Summarizer) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// LastComputedAt returns when the summary was last recomputed and whether it
// has been computed at all.
func (s *Summarizer) LastComputedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastComputed, s.computed
}

// Stop cancels any scheduled recomputation and ignores later notifications.
func (s *Summarizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}
