// Package offer holds the contents of a trade offer under construction and
// raises a change notification after every mutation.
package offer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
)

var (
	// ErrAlreadyInOffer is returned when adding an item already on either side.
	ErrAlreadyInOffer = errors.New("item already in offer")
	// ErrNotInOffer is returned when removing an item that is not on the side.
	ErrNotInOffer = errors.New("item not in offer")
)

// Listener is notified after the offer changes. It carries no payload.
type Listener func()

// Offer is the two-sided slot list of a trade offer.
type Offer struct {
	ID uuid.UUID

	mu        sync.RWMutex
	slots     map[selector.Side][]inventory.Item
	index     map[inventory.Ref]selector.Side
	listeners map[int]Listener
	nextID    int
}

// New creates an empty Offer with a random ID.
func New() *Offer {
	return &Offer{
		ID: uuid.New(),
		slots: map[selector.Side][]inventory.Item{
			selector.Self: nil,
			selector.Them: nil,
		},
		index:     make(map[inventory.Ref]selector.Side),
		listeners: make(map[int]Listener),
	}
}

// Add appends item to side.
//
// Postcondition: on success Committed(item.Ref()) is true and listeners have
// been notified.
func (o *Offer) Add(side selector.Side, item inventory.Item) error {
	ref := item.Ref()
	o.mu.Lock()
	if _, ok := o.index[ref]; ok {
		o.mu.Unlock()
		return fmt.Errorf("offer: Offer.Add: %s: %w", ref, ErrAlreadyInOffer)
	}
	o.slots[side] = append(o.slots[side], item)
	o.index[ref] = side
	o.mu.Unlock()

	o.notify()
	return nil
}

// Remove takes the item identified by ref off side.
func (o *Offer) Remove(side selector.Side, ref inventory.Ref) error {
	o.mu.Lock()
	if s, ok := o.index[ref]; !ok || s != side {
		o.mu.Unlock()
		return fmt.Errorf("offer: Offer.Remove: %s: %w", ref, ErrNotInOffer)
	}
	items := o.slots[side]
	for i, it := range items {
		if it.Ref() == ref {
			o.slots[side] = append(items[:i:i], items[i+1:]...)
			break
		}
	}
	delete(o.index, ref)
	o.mu.Unlock()

	o.notify()
	return nil
}

// Items returns a copy of side's items in slot order.
func (o *Offer) Items(side selector.Side) []inventory.Item {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]inventory.Item, len(o.slots[side]))
	copy(out, o.slots[side])
	return out
}

// Count returns the number of items on both sides.
func (o *Offer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.index)
}

// Committed reports whether ref is on either side.
func (o *Offer) Committed(ref inventory.Ref) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.index[ref]
	return ok
}

// Subscribe registers fn for change notifications and returns a function
// that unregisters it.
func (o *Offer) Subscribe(fn Listener) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

func (o *Offer) notify() {
	o.mu.RLock()
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
