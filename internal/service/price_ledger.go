package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/notify"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTrendLimit = 10
	MaxTrendLimit     = 100
)

// PriceChangedPayload is the body of a price_changed event
type PriceChangedPayload struct {
	InventoryID uuid.UUID         `json:"inventory_id"`
	OldPrice    decimal.Decimal   `json:"old_price"`
	NewPrice    decimal.Decimal   `json:"new_price"`
	Change      domain.PriceDelta `json:"change"`
	Reason      string            `json:"reason"`
}

// PriceLedger changes prices. Every change writes exactly one ledger entry in
// the same transaction as the price update.
type PriceLedger interface {
	ChangePrice(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, newPrice decimal.Decimal, reason string) (*domain.PriceChange, error)
	BulkAdjust(ctx context.Context, actor domain.Actor, inventoryIDs []uuid.UUID, adj domain.PriceAdjustment, reason string) (int, error)
	PriceTrend(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, limit int) ([]domain.PriceTrendEntry, error)
}

type priceLedger struct {
	inventory repository.InventoryRepository
	changes   repository.PriceChangeRepository
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewPriceLedger creates a new instance of PriceLedger
func NewPriceLedger(
	inventory repository.InventoryRepository,
	changes repository.PriceChangeRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
	opts ...Option,
) PriceLedger {
	o := buildOptions(opts)
	return &priceLedger{
		inventory: inventory,
		changes:   changes,
		notifier:  notifier,
		logger:    logger.Named("prices"),
		now:       o.now,
	}
}

// ChangePrice sets a new selling price on one record
func (l *priceLedger) ChangePrice(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, newPrice decimal.Decimal, reason string) (*domain.PriceChange, error) {
	newPrice = newPrice.Round(2)
	if err := domain.ValidatePrice("price", newPrice); err != nil {
		return nil, err
	}

	rec, err := l.inventory.FindByID(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rec.PharmacyID); err != nil {
		return nil, err
	}

	return l.apply(ctx, actor, repository.PriceChangeParams{InventoryID: rec.ID, PharmacyID: rec.PharmacyID, NewPrice: newPrice}, reason)
}

// BulkAdjust applies one adjustment to many records. Ids the actor does not
// manage, or that no longer exist, are skipped; the count covers only records
// whose price was changed. A failure on one record does not undo the others.
func (l *priceLedger) BulkAdjust(ctx context.Context, actor domain.Actor, inventoryIDs []uuid.UUID, adj domain.PriceAdjustment, reason string) (int, error) {
	if adj == nil {
		return 0, domain.NewValidationError("update_type", "is required")
	}
	pharmacyID, err := ownPharmacy(actor)
	if err != nil {
		return 0, err
	}
	if len(inventoryIDs) == 0 {
		return 0, nil
	}

	recs, err := l.inventory.FindByIDs(ctx, pharmacyID, dedupe(inventoryIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to load inventory records: %w", err)
	}

	var (
		updated int
		errs    []error
	)
	for _, rec := range recs {
		params := repository.PriceChangeParams{InventoryID: rec.ID, PharmacyID: rec.PharmacyID, Adjustment: adj}
		if _, err := l.apply(ctx, actor, params, reason); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("inventory %s: %w", rec.ID, err))
			continue
		}
		updated++
	}

	l.logger.Info("Bulk price adjustment finished",
		zap.String("pharmacy_id", pharmacyID.String()),
		zap.Int("requested", len(inventoryIDs)),
		zap.Int("updated", updated),
		zap.Int("failed", len(errs)),
	)
	return updated, errors.Join(errs...)
}

// PriceTrend returns the most recent ledger entries of one record, newest first
func (l *priceLedger) PriceTrend(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, limit int) ([]domain.PriceTrendEntry, error) {
	rec, err := l.inventory.FindByID(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rec.PharmacyID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultTrendLimit
	case limit > MaxTrendLimit:
		limit = MaxTrendLimit
	}

	changes, err := l.changes.ListByInventory(ctx, inventoryID, limit)
	if err != nil {
		return nil, err
	}

	trend := make([]domain.PriceTrendEntry, 0, len(changes))
	for _, c := range changes {
		trend = append(trend, domain.PriceTrendEntry{
			PriceChange: c,
			Change:      domain.FormatPriceChange(c.OldPrice, c.NewPrice),
		})
	}
	return trend, nil
}

func (l *priceLedger) apply(ctx context.Context, actor domain.Actor, params repository.PriceChangeParams, reason string) (*domain.PriceChange, error) {
	now := l.now()
	params.ChangedBy = actor.ChangedBy()
	params.Reason = reason
	params.ChangedAt = now

	inventoryID, pharmacyID := params.InventoryID, params.PharmacyID
	change, err := l.changes.Apply(ctx, params)
	if err != nil {
		return nil, err
	}

	delta := domain.FormatPriceChange(change.OldPrice, change.NewPrice)
	notify.Emit(ctx, l.notifier, l.logger, notify.NewEvent(notify.EventPriceChanged, pharmacyID, now, PriceChangedPayload{
		InventoryID: inventoryID,
		OldPrice:    change.OldPrice,
		NewPrice:    change.NewPrice,
		Change:      delta,
		Reason:      reason,
	}))
	return change, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
