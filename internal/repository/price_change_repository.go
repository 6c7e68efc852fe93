package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"geopharm/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PriceChangeParams describes one price mutation. When Adjustment is set the
// new price is computed from the locked current price and NewPrice is ignored.
type PriceChangeParams struct {
	InventoryID uuid.UUID
	PharmacyID  uuid.UUID
	NewPrice    decimal.Decimal
	Adjustment  domain.PriceAdjustment
	ChangedBy   *uuid.UUID
	Reason      string
	ChangedAt   time.Time
}

// PriceChangeRepository is the append-only price ledger
type PriceChangeRepository interface {
	// Apply locks the record, writes the new price and appends the ledger
	// row in one transaction
	Apply(ctx context.Context, p PriceChangeParams) (*domain.PriceChange, error)
	ListByInventory(ctx context.Context, inventoryID uuid.UUID, limit int) ([]domain.PriceChange, error)
	ListRecentByPharmacy(ctx context.Context, pharmacyID uuid.UUID, limit int) ([]domain.PriceChangeView, error)
}

type priceChangeRepository struct {
	db *sqlx.DB
}

// NewPriceChangeRepository creates a new instance of PriceChangeRepository
func NewPriceChangeRepository(db *sqlx.DB) PriceChangeRepository {
	return &priceChangeRepository{db: db}
}

func (r *priceChangeRepository) Apply(ctx context.Context, p PriceChangeParams) (*domain.PriceChange, error) {
	change := &domain.PriceChange{
		ID:          uuid.New(),
		InventoryID: p.InventoryID,
		NewPrice:    p.NewPrice,
		ChangedBy:   p.ChangedBy,
		Reason:      p.Reason,
		ChangedAt:   p.ChangedAt,
	}

	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		// concurrent changes to the same record serialize on this lock
		err := tx.GetContext(ctx, &change.OldPrice,
			`SELECT price FROM inventory WHERE id = $1 AND pharmacy_id = $2 FOR UPDATE`,
			p.InventoryID, p.PharmacyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInventoryNotFound
			}
			return fmt.Errorf("failed to lock inventory record: %w", err)
		}
		if p.Adjustment != nil {
			change.NewPrice = p.Adjustment.Apply(change.OldPrice)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE inventory SET price = $2, last_updated = GREATEST(last_updated, $3) WHERE id = $1`,
			p.InventoryID, change.NewPrice, p.ChangedAt); err != nil {
			return fmt.Errorf("failed to update price: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_changes (id, inventory_id, old_price, new_price, changed_by, reason, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			change.ID, change.InventoryID, change.OldPrice, change.NewPrice, change.ChangedBy, change.Reason, change.ChangedAt); err != nil {
			return fmt.Errorf("failed to append price change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// ListByInventory returns the most recent changes, newest first
func (r *priceChangeRepository) ListByInventory(ctx context.Context, inventoryID uuid.UUID, limit int) ([]domain.PriceChange, error) {
	query := `
		SELECT id, inventory_id, old_price, new_price, changed_by, reason, changed_at
		FROM price_changes
		WHERE inventory_id = $1
		ORDER BY changed_at DESC, id
		LIMIT $2
	`

	changes := []domain.PriceChange{}
	if err := r.db.SelectContext(ctx, &changes, query, inventoryID, limit); err != nil {
		return nil, fmt.Errorf("failed to list price changes: %w", err)
	}
	return changes, nil
}

func (r *priceChangeRepository) ListRecentByPharmacy(ctx context.Context, pharmacyID uuid.UUID, limit int) ([]domain.PriceChangeView, error) {
	return listRecentPriceChanges(ctx, r.db, pharmacyID, limit)
}

func listRecentPriceChanges(ctx context.Context, q sqlx.QueryerContext, pharmacyID uuid.UUID, limit int) ([]domain.PriceChangeView, error) {
	query := `
		SELECT pc.id, pc.inventory_id, pc.old_price, pc.new_price, pc.changed_by, pc.reason, pc.changed_at,
			d.name AS drug_name
		FROM price_changes pc
		JOIN inventory i ON i.id = pc.inventory_id
		JOIN drugs d ON d.id = i.drug_id
		WHERE i.pharmacy_id = $1
		ORDER BY pc.changed_at DESC, pc.id
		LIMIT $2
	`

	changes := []domain.PriceChangeView{}
	if err := sqlx.SelectContext(ctx, q, &changes, query, pharmacyID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent price changes: %w", err)
	}
	return changes, nil
}
