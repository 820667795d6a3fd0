// Package readiness lets callers wait for an inventory slice to be loaded.
//
// A Coordinator is a one-shot registry: callbacks registered for a slice are
// invoked by the next announcement of that slice and then forgotten. It keeps
// no record of past announcements; a caller that needs "already loaded"
// semantics must check the inventory store before registering.
package readiness

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
)

// Key identifies the inventory slice a callback waits for.
type Key struct {
	Owner     string
	AppID     int
	ContextID string
}

// String returns "owner/app/context".
func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Owner, k.AppID, k.ContextID)
}

// Callback runs once when the awaited slice is announced.
type Callback func()

// Coordinator holds pending callbacks keyed by slice and by owner.
type Coordinator struct {
	mu       sync.Mutex
	specific map[Key][]Callback
	anyOwner map[string][]Callback
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewCoordinator creates an empty Coordinator. logger and metrics may be nil.
func NewCoordinator(logger *zap.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		specific: make(map[Key][]Callback),
		anyOwner: make(map[string][]Callback),
		logger:   observability.OrNop(logger),
		metrics:  metrics,
	}
}

// Register queues cb until the next announcement of key.
//
// Precondition: cb must be non-nil.
func (c *Coordinator) Register(key Key, cb Callback) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	c.specific[key] = append(c.specific[key], cb)
	c.mu.Unlock()
}

// RegisterAny queues cb until the next announcement of any slice owned by
// owner.
//
// Precondition: cb must be non-nil.
func (c *Coordinator) RegisterAny(owner string, cb Callback) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	c.anyOwner[owner] = append(c.anyOwner[owner], cb)
	c.mu.Unlock()
}

// Announce reports that the slice (owner, appID, contextID) is now available.
// Owner-wide callbacks run first, then those registered for the exact slice,
// each group in registration order. Both queues are cleared before any
// callback runs, so a callback that registers again waits for the next
// announcement.
//
// Postcondition: returns the number of callbacks invoked; zero for a repeated
// announcement with no new registrations.
func (c *Coordinator) Announce(owner string, appID int, contextID string) int {
	key := Key{Owner: owner, AppID: appID, ContextID: contextID}

	c.mu.Lock()
	batch := make([]Callback, 0, len(c.anyOwner[owner])+len(c.specific[key]))
	batch = append(batch, c.anyOwner[owner]...)
	batch = append(batch, c.specific[key]...)
	delete(c.anyOwner, owner)
	delete(c.specific, key)
	c.mu.Unlock()

	c.logger.Debug("inventory slice announced",
		zap.Stringer("slice", key),
		zap.Int("callbacks", len(batch)),
	)
	c.metrics.ObserveAnnouncement(len(batch))

	for _, cb := range batch {
		cb()
	}
	return len(batch)
}

// Pending returns the number of callbacks waiting on key, excluding
// owner-wide registrations.
func (c *Coordinator) Pending(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.specific[key])
}

// PendingAny returns the number of owner-wide callbacks waiting on owner.
func (c *Coordinator) PendingAny(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.anyOwner[owner])
}
