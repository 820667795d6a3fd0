// Package applier applies offer mutations one at a time with fixed spacing.
package applier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
)

// Operation is a single mutation such as adding one item to an offer.
type Operation func()

// Applier runs lists of operations sequentially on a clock. Each operation
// after the first runs from a timer callback.
type Applier struct {
	clock  clockwork.Clock
	logger *zap.Logger
}

// New creates an Applier. logger may be nil.
//
// Precondition: clk must be non-nil.
func New(clk clockwork.Clock, logger *zap.Logger) *Applier {
	return &Applier{clock: clk, logger: observability.OrNop(logger)}
}

// Run is one in-progress application of an operation list. A Run has no
// cancellation; once started it runs to completion.
type Run struct {
	ID uuid.UUID

	clock    clockwork.Clock
	logger   *zap.Logger
	interval time.Duration
	onDone   func()
	done     chan struct{}

	mu      sync.Mutex
	tasks   []Operation
	applied int
}

// Apply invokes each operation exactly once, in order. The first runs before
// Apply returns; each later one runs interval after its predecessor. done,
// which may be nil, runs after the last operation.
//
// Postcondition: at most one operation is in flight at any time.
func (a *Applier) Apply(ops []Operation, interval time.Duration, done func()) *Run {
	tasks := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op != nil {
			tasks = append(tasks, op)
		}
	}
	r := &Run{
		ID:       uuid.New(),
		clock:    a.clock,
		logger:   a.logger,
		interval: interval,
		onDone:   done,
		done:     make(chan struct{}),
		tasks:    tasks,
	}
	r.logger.Debug("mutation run started",
		zap.Stringer("run", r.ID),
		zap.Int("operations", len(tasks)),
		zap.Duration("interval", interval),
	)
	r.step()
	return r
}

// ApplyReversed is Apply over ops in reverse order, used for removals so that
// slots are emptied from the end.
func (a *Applier) ApplyReversed(ops []Operation, interval time.Duration, done func()) *Run {
	reversed := make([]Operation, len(ops))
	for i, op := range ops {
		reversed[len(ops)-1-i] = op
	}
	return a.Apply(reversed, interval, done)
}

func (r *Run) step() {
	r.mu.Lock()
	if len(r.tasks) == 0 {
		r.mu.Unlock()
		r.finish()
		return
	}
	op := r.tasks[0]
	r.tasks = r.tasks[1:]
	remaining := len(r.tasks)
	r.mu.Unlock()

	op()

	r.mu.Lock()
	r.applied++
	r.mu.Unlock()

	if remaining == 0 {
		r.finish()
		return
	}
	r.clock.AfterFunc(r.interval, r.step)
}

func (r *Run) finish() {
	r.logger.Debug("mutation run finished",
		zap.Stringer("run", r.ID),
		zap.Int("applied", r.Applied()),
	)
	if r.onDone != nil {
		r.onDone()
	}
	close(r.done)
}

// Applied returns how many operations have run so far.
func (r *Run) Applied() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Done is closed after the completion callback has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
