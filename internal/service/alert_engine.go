package service

import (
	"context"
	"fmt"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/notify"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertCreatedPayload is the body of an alert_created event
type AlertCreatedPayload struct {
	AlertID     uuid.UUID        `json:"alert_id"`
	InventoryID uuid.UUID        `json:"inventory_id"`
	AlertType   domain.AlertType `json:"alert_type"`
	Message     string           `json:"message"`
}

// AlertEngine raises and resolves operational alerts. Scanning is idempotent:
// a condition that already has an unresolved alert never gets a second one.
type AlertEngine interface {
	Scan(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error)
	List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID, filter repository.AlertFilter) ([]domain.AlertView, error)
	Resolve(ctx context.Context, actor domain.Actor, alertID uuid.UUID) (*domain.AlertView, error)
	ResolveAll(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error)
}

type alertEngine struct {
	inventory  repository.InventoryRepository
	alerts     repository.AlertRepository
	notifier   notify.Notifier
	windowDays int
	logger     *zap.Logger
	now        func() time.Time
}

// NewAlertEngine creates a new instance of AlertEngine. windowDays is how far
// ahead an expiry counts as soon; zero or less means the default.
func NewAlertEngine(
	inventory repository.InventoryRepository,
	alerts repository.AlertRepository,
	notifier notify.Notifier,
	windowDays int,
	logger *zap.Logger,
	opts ...Option,
) AlertEngine {
	if windowDays <= 0 {
		windowDays = domain.DefaultExpiryWindowDays
	}
	o := buildOptions(opts)
	return &alertEngine{
		inventory:  inventory,
		alerts:     alerts,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     logger.Named("alerts"),
		now:        o.now,
	}
}

// Scan evaluates every record of the pharmacy and returns how many new alerts it raised
func (e *alertEngine) Scan(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return 0, err
	}

	items, err := e.inventory.ListByPharmacy(ctx, pharmacyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load inventory: %w", err)
	}

	now := e.now()
	today := domain.DateOf(now)
	created := 0

	for i := range items {
		item := &items[i]
		for _, c := range domain.EvaluateAlerts(&item.InventoryRecord, item.DrugName, today, e.windowDays) {
			alert := &domain.Alert{
				ID:          uuid.New(),
				InventoryID: item.ID,
				AlertType:   c.Type,
				Message:     c.Message,
				CreatedAt:   now,
			}
			ok, err := e.alerts.CreateIfAbsent(ctx, alert)
			if err != nil {
				return created, err
			}
			if !ok {
				continue
			}
			created++
			notify.Emit(ctx, e.notifier, e.logger, notify.NewEvent(notify.EventAlertCreated, pharmacyID, now, AlertCreatedPayload{
				AlertID:     alert.ID,
				InventoryID: alert.InventoryID,
				AlertType:   alert.AlertType,
				Message:     alert.Message,
			}))
		}
	}

	e.logger.Info("Inventory scanned",
		zap.String("pharmacy_id", pharmacyID.String()),
		zap.Int("records", len(items)),
		zap.Int("alerts_created", created),
	)
	return created, nil
}

func (e *alertEngine) List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID, filter repository.AlertFilter) ([]domain.AlertView, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return nil, err
	}
	return e.alerts.ListByPharmacy(ctx, pharmacyID, filter)
}

// Resolve marks one alert handled. Resolving an already resolved alert is a no-op.
func (e *alertEngine) Resolve(ctx context.Context, actor domain.Actor, alertID uuid.UUID) (*domain.AlertView, error) {
	view, err := e.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, view.PharmacyID); err != nil {
		return nil, err
	}
	if view.IsResolved {
		return view, nil
	}

	now := e.now()
	if err := e.alerts.Resolve(ctx, alertID, now); err != nil {
		return nil, err
	}
	view.Resolve(now)
	return view, nil
}

func (e *alertEngine) ResolveAll(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return 0, err
	}
	n, err := e.alerts.ResolveAllByPharmacy(ctx, pharmacyID, e.now())
	if err != nil {
		return 0, err
	}
	e.logger.Info("Alerts resolved", zap.String("pharmacy_id", pharmacyID.String()), zap.Int("count", n))
	return n, nil
}

// SweepResult summarizes one pass over every approved pharmacy
type SweepResult struct {
	Pharmacies    int
	AlertsCreated int
	Failed        int
}

// AlertSweeper scans every approved pharmacy as the system actor
type AlertSweeper struct {
	pharmacies repository.PharmacyRepository
	engine     AlertEngine
	logger     *zap.Logger
}

// NewAlertSweeper creates an AlertSweeper
func NewAlertSweeper(pharmacies repository.PharmacyRepository, engine AlertEngine, logger *zap.Logger) *AlertSweeper {
	return &AlertSweeper{pharmacies: pharmacies, engine: engine, logger: logger.Named("sweep")}
}

// Run scans each pharmacy in turn. A failing pharmacy is logged and skipped;
// a cancelled context stops the sweep.
func (s *AlertSweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	pharmacies, err := s.pharmacies.ListApproved(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list pharmacies: %w", err)
	}

	system := domain.SystemActor()
	for _, p := range pharmacies {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := s.engine.Scan(ctx, system, p.ID)
		if err != nil {
			res.Failed++
			s.logger.Error("Scan failed", zap.String("pharmacy_id", p.ID.String()), zap.Error(err))
			continue
		}
		res.Pharmacies++
		res.AlertsCreated += n
	}

	s.logger.Info("Sweep finished",
		zap.Int("pharmacies", res.Pharmacies),
		zap.Int("alerts_created", res.AlertsCreated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
