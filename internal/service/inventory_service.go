package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateInventoryInput is what an owner supplies to stock a drug
type CreateInventoryInput struct {
	DrugID            uuid.UUID
	Quantity          int
	Price             decimal.Decimal
	CostPrice         *decimal.Decimal
	LowStockThreshold *int
	ExpiryDate        *time.Time
	BatchNumber       string
	Supplier          string
	Notes             string
}

// InventoryService manages stock records. Status is never set by callers
// except through Discontinue and Reinstate.
type InventoryService interface {
	Create(ctx context.Context, actor domain.Actor, in CreateInventoryInput) (*domain.InventoryRecord, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error)
	List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) ([]domain.InventoryItem, error)
	SetQuantity(ctx context.Context, actor domain.Actor, id uuid.UUID, quantity int) (*domain.InventoryRecord, error)
	AdjustStock(ctx context.Context, actor domain.Actor, id uuid.UUID, delta int) (*domain.InventoryRecord, error)
	SetThreshold(ctx context.Context, actor domain.Actor, id uuid.UUID, threshold int) (*domain.InventoryRecord, error)
	Discontinue(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error)
	Reinstate(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error)
}

type inventoryService struct {
	inventory repository.InventoryRepository
	drugs     repository.DrugRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(
	inventory repository.InventoryRepository,
	drugs repository.DrugRepository,
	logger *zap.Logger,
	opts ...Option,
) InventoryService {
	o := buildOptions(opts)
	return &inventoryService{
		inventory: inventory,
		drugs:     drugs,
		logger:    logger.Named("inventory"),
		now:       o.now,
	}
}

// Create stocks a drug in the caller's pharmacy
func (s *inventoryService) Create(ctx context.Context, actor domain.Actor, in CreateInventoryInput) (*domain.InventoryRecord, error) {
	pharmacyID, err := ownPharmacy(actor)
	if err != nil {
		return nil, err
	}

	if _, err := s.drugs.FindByID(ctx, in.DrugID); err != nil {
		return nil, err
	}

	rec, err := domain.NewInventoryRecord(domain.NewInventoryParams{
		PharmacyID:        pharmacyID,
		DrugID:            in.DrugID,
		Quantity:          in.Quantity,
		Price:             in.Price,
		CostPrice:         in.CostPrice,
		LowStockThreshold: in.LowStockThreshold,
		ExpiryDate:        in.ExpiryDate,
		BatchNumber:       in.BatchNumber,
		Supplier:          in.Supplier,
		Notes:             in.Notes,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.inventory.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Inventory record created",
		zap.String("inventory_id", rec.ID.String()),
		zap.String("pharmacy_id", pharmacyID.String()),
		zap.String("status", string(rec.Status)),
	)
	return rec, nil
}

// Get returns one record of a pharmacy the actor manages
func (s *inventoryService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return s.load(ctx, actor, id)
}

// List returns every record of a pharmacy with drug and category names
func (s *inventoryService) List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) ([]domain.InventoryItem, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return nil, err
	}
	return s.inventory.ListByPharmacy(ctx, pharmacyID)
}

// SetQuantity replaces the on-hand quantity
func (s *inventoryService) SetQuantity(ctx context.Context, actor domain.Actor, id uuid.UUID, quantity int) (*domain.InventoryRecord, error) {
	return s.mutate(ctx, actor, id, "quantity_set", func(rec *domain.InventoryRecord, now time.Time) error {
		return rec.SetQuantity(quantity, now)
	})
}

// AdjustStock applies a signed delta, e.g. a delivery or a sale
func (s *inventoryService) AdjustStock(ctx context.Context, actor domain.Actor, id uuid.UUID, delta int) (*domain.InventoryRecord, error) {
	return s.mutate(ctx, actor, id, "stock_adjusted", func(rec *domain.InventoryRecord, now time.Time) error {
		return rec.AdjustQuantity(delta, now)
	})
}

// SetThreshold replaces the low-stock threshold
func (s *inventoryService) SetThreshold(ctx context.Context, actor domain.Actor, id uuid.UUID, threshold int) (*domain.InventoryRecord, error) {
	return s.mutate(ctx, actor, id, "threshold_set", func(rec *domain.InventoryRecord, now time.Time) error {
		return rec.SetThreshold(threshold, now)
	})
}

// Discontinue hides a record from search regardless of quantity
func (s *inventoryService) Discontinue(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return s.mutate(ctx, actor, id, "discontinued", func(rec *domain.InventoryRecord, now time.Time) error {
		rec.Discontinue(now)
		return nil
	})
}

// Reinstate returns a discontinued record to its derived status
func (s *inventoryService) Reinstate(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return s.mutate(ctx, actor, id, "reinstated", func(rec *domain.InventoryRecord, now time.Time) error {
		rec.Reinstate(now)
		return nil
	})
}

func (s *inventoryService) load(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	rec, err := s.inventory.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rec.PharmacyID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *inventoryService) mutate(
	ctx context.Context,
	actor domain.Actor,
	id uuid.UUID,
	action string,
	apply func(rec *domain.InventoryRecord, now time.Time) error,
) (*domain.InventoryRecord, error) {
	var previous domain.InventoryStatus

	rec, err := s.inventory.Mutate(ctx, id, func(rec *domain.InventoryRecord) error {
		if err := authorize(actor, rec.PharmacyID); err != nil {
			return err
		}

		previous = rec.Status
		if err := apply(rec, s.now()); err != nil {
			return err
		}
		if err := rec.CheckConsistency(); err != nil {
			s.logger.Error("Inventory record left inconsistent", zap.String("action", action), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrScopeViolation) ||
			errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConsistency) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update inventory record: %w", err)
	}

	if previous != rec.Status {
		s.logger.Info("Inventory status changed",
			zap.String("inventory_id", rec.ID.String()),
			zap.String("action", action),
			zap.String("from", string(previous)),
			zap.String("to", string(rec.Status)),
		)
	}
	return rec, nil
}
