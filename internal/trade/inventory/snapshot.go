package inventory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSnapshotExists is returned by Store.Put when the slice is already loaded.
var ErrSnapshotExists = errors.New("inventory: snapshot already loaded")

// SliceKey identifies one owner's inventory for one game/context pair.
type SliceKey struct {
	Owner     string
	AppID     int
	ContextID string
}

// Snapshot is the point-in-time view of one inventory slice. It is never
// mutated after construction.
type Snapshot struct {
	key     SliceKey
	byAsset map[string]Item
	ordered []Item
}

// NewSnapshot builds a Snapshot for the given slice.
//
// Precondition: owner and contextID are non-empty; appID > 0.
// Postcondition: returns an error if any item belongs to a different app or
// context, has an empty asset id, or repeats an asset id. Items are ordered by
// Position, ties broken by asset id.
func NewSnapshot(owner string, appID int, contextID string, items []Item) (*Snapshot, error) {
	var errs []error
	if owner == "" {
		errs = append(errs, errors.New("owner must not be empty"))
	}
	if appID <= 0 {
		errs = append(errs, fmt.Errorf("app id must be > 0, got %d", appID))
	}
	if contextID == "" {
		errs = append(errs, errors.New("context id must not be empty"))
	}

	s := &Snapshot{
		key:     SliceKey{Owner: owner, AppID: appID, ContextID: contextID},
		byAsset: make(map[string]Item, len(items)),
		ordered: make([]Item, 0, len(items)),
	}
	for _, it := range items {
		switch {
		case it.AssetID == "":
			errs = append(errs, fmt.Errorf("item at position %d has no asset id", it.Position))
			continue
		case it.AppID != appID || it.ContextID != contextID:
			errs = append(errs, fmt.Errorf("item %s does not belong to %d/%s", it.Ref(), appID, contextID))
			continue
		}
		if _, dup := s.byAsset[it.AssetID]; dup {
			errs = append(errs, fmt.Errorf("duplicate asset id %q", it.AssetID))
			continue
		}
		it.Tags = append([]string(nil), it.Tags...)
		s.byAsset[it.AssetID] = it
		s.ordered = append(s.ordered, it)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("inventory: invalid snapshot: %v", errs)
	}

	sort.SliceStable(s.ordered, func(i, j int) bool {
		if s.ordered[i].Position != s.ordered[j].Position {
			return s.ordered[i].Position < s.ordered[j].Position
		}
		return s.ordered[i].AssetID < s.ordered[j].AssetID
	})
	return s, nil
}

// Key returns the slice this snapshot describes.
func (s *Snapshot) Key() SliceKey { return s.key }

// Owner returns the owning user id.
func (s *Snapshot) Owner() string { return s.key.Owner }

// AppID returns the game id of the slice.
func (s *Snapshot) AppID() int { return s.key.AppID }

// ContextID returns the context id of the slice.
func (s *Snapshot) ContextID() string { return s.key.ContextID }

// Len returns the number of items in the snapshot.
func (s *Snapshot) Len() int { return len(s.ordered) }

// Item returns the item with the given asset id.
func (s *Snapshot) Item(assetID string) (Item, bool) {
	it, ok := s.byAsset[assetID]
	return it, ok
}

// Resolve looks ref up, rejecting references to another app or context.
func (s *Snapshot) Resolve(ref Ref) (Item, bool) {
	if ref.AppID != s.key.AppID || ref.ContextID != s.key.ContextID {
		return Item{}, false
	}
	return s.Item(ref.AssetID)
}

// Ordered returns the items in display-position order.
//
// Postcondition: returned slice is a copy.
func (s *Snapshot) Ordered() []Item {
	out := make([]Item, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Store maps inventory slices to their snapshots. Snapshots are only ever
// added; a loaded slice is never replaced or removed.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[SliceKey]*Snapshot
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{snapshots: make(map[SliceKey]*Snapshot)}
}

// Put records s.
//
// Precondition: s must not be nil.
// Postcondition: Lookup(s.Key()) returns s; returns ErrSnapshotExists and
// leaves the store unchanged if the slice was already loaded.
func (st *Store) Put(s *Snapshot) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.snapshots[s.key]; exists {
		return fmt.Errorf("%w: %s/%d/%s", ErrSnapshotExists, s.key.Owner, s.key.AppID, s.key.ContextID)
	}
	st.snapshots[s.key] = s
	return nil
}

// Lookup returns the snapshot for the slice. ok is false until the slice has
// been loaded; callers must treat that as absent, not empty.
func (st *Store) Lookup(owner string, appID int, contextID string) (*Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.snapshots[SliceKey{Owner: owner, AppID: appID, ContextID: contextID}]
	return s, ok
}

// Keys returns every loaded slice, sorted by owner, app and context.
func (st *Store) Keys() []SliceKey {
	st.mu.RLock()
	out := make([]SliceKey, 0, len(st.snapshots))
	for k := range st.snapshots {
		out = append(out, k)
	}
	st.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		if out[i].AppID != out[j].AppID {
			return out[i].AppID < out[j].AppID
		}
		return out[i].ContextID < out[j].ContextID
	})
	return out
}
