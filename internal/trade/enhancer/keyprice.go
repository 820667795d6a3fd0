package enhancer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoKeyPrice is returned when no key price has been remembered for a game.
var ErrNoKeyPrice = errors.New("no key price remembered")

// KeyPriceStore remembers the value of one key, in smallest currency units,
// per game.
type KeyPriceStore interface {
	Save(ctx context.Context, appID, units int) error
	// Get returns an error wrapping ErrNoKeyPrice when nothing is stored.
	Get(ctx context.Context, appID int) (int, error)
}

// MemoryKeyPrices is an in-process KeyPriceStore.
type MemoryKeyPrices struct {
	mu     sync.RWMutex
	prices map[int]int
}

// NewMemoryKeyPrices creates an empty MemoryKeyPrices.
func NewMemoryKeyPrices() *MemoryKeyPrices {
	return &MemoryKeyPrices{prices: make(map[int]int)}
}

// Save stores units for appID.
//
// Precondition: units > 0.
func (m *MemoryKeyPrices) Save(_ context.Context, appID, units int) error {
	if units <= 0 {
		return fmt.Errorf("enhancer: MemoryKeyPrices.Save: units must be > 0, got %d", units)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[appID] = units
	return nil
}

// Get returns the stored price for appID.
func (m *MemoryKeyPrices) Get(_ context.Context, appID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	units, ok := m.prices[appID]
	if !ok {
		return 0, fmt.Errorf("enhancer: MemoryKeyPrices.Get: app %d: %w", appID, ErrNoKeyPrice)
	}
	return units, nil
}
