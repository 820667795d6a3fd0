package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
)

// ErrKeyPriceNotFound is returned when no price is stored for a game.
var ErrKeyPriceNotFound = enhancer.ErrNoKeyPrice

// KeyPrice is a remembered key value.
type KeyPrice struct {
	AppID     int
	Units     int
	UpdatedAt time.Time
}

// KeyPriceRepository persists the key-to-metal ratio per game.
type KeyPriceRepository struct {
	db *pgxpool.Pool
}

var _ enhancer.KeyPriceStore = (*KeyPriceRepository)(nil)

// NewKeyPriceRepository creates a KeyPriceRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the key_prices
// table migrated.
func NewKeyPriceRepository(db *pgxpool.Pool) *KeyPriceRepository {
	return &KeyPriceRepository{db: db}
}

// Save stores units as the key price of appID, replacing any previous value.
//
// Precondition: units > 0.
func (r *KeyPriceRepository) Save(ctx context.Context, appID, units int) error {
	if units <= 0 {
		return fmt.Errorf("postgres: KeyPriceRepository.Save: units must be > 0, got %d", units)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO key_prices (app_id, units, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (app_id) DO UPDATE
		SET units = EXCLUDED.units, updated_at = EXCLUDED.updated_at`,
		appID, units,
	)
	if err != nil {
		return fmt.Errorf("postgres: KeyPriceRepository.Save: app %d: %w", appID, err)
	}
	return nil
}

// Get returns the stored key price of appID.
//
// Postcondition: the error wraps ErrKeyPriceNotFound when nothing is stored.
func (r *KeyPriceRepository) Get(ctx context.Context, appID int) (int, error) {
	kp, err := r.Lookup(ctx, appID)
	if err != nil {
		return 0, err
	}
	return kp.Units, nil
}

// Lookup returns the stored key price of appID with its update time.
func (r *KeyPriceRepository) Lookup(ctx context.Context, appID int) (KeyPrice, error) {
	kp := KeyPrice{AppID: appID}
	err := r.db.QueryRow(ctx,
		`SELECT units, updated_at FROM key_prices WHERE app_id = $1`, appID,
	).Scan(&kp.Units, &kp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return KeyPrice{}, fmt.Errorf("postgres: KeyPriceRepository.Lookup: app %d: %w", appID, ErrKeyPriceNotFound)
	}
	if err != nil {
		return KeyPrice{}, fmt.Errorf("postgres: KeyPriceRepository.Lookup: app %d: %w", appID, err)
	}
	return kp, nil
}

// Delete forgets the key price of appID. Deleting a missing price is not an error.
func (r *KeyPriceRepository) Delete(ctx context.Context, appID int) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM key_prices WHERE app_id = $1`, appID); err != nil {
		return fmt.Errorf("postgres: KeyPriceRepository.Delete: app %d: %w", appID, err)
	}
	return nil
}
