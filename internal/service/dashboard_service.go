package service

import (
	"context"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecentPriceChangeLimit is how many price changes a dashboard shows
const RecentPriceChangeLimit = 10

// DashboardService builds read-only rollups for pharmacy owners
type DashboardService interface {
	Dashboard(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (*domain.Dashboard, error)
	ExpiryReport(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (*domain.ExpiryReport, error)
}

type dashboardService struct {
	snapshots  repository.DashboardRepository
	inventory  repository.InventoryRepository
	windowDays int
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService creates a new instance of DashboardService
func NewDashboardService(
	snapshots repository.DashboardRepository,
	inventory repository.InventoryRepository,
	windowDays int,
	logger *zap.Logger,
	opts ...Option,
) DashboardService {
	if windowDays <= 0 {
		windowDays = domain.DefaultExpiryWindowDays
	}
	o := buildOptions(opts)
	return &dashboardService{
		snapshots:  snapshots,
		inventory:  inventory,
		windowDays: windowDays,
		logger:     logger.Named("dashboard"),
		now:        o.now,
	}
}

func (s *dashboardService) Dashboard(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (*domain.Dashboard, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.LoadSnapshot(ctx, pharmacyID, RecentPriceChangeLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := domain.BuildDashboard(snap, now, s.windowDays)
	s.logger.Debug("Dashboard built",
		zap.String("pharmacy_id", pharmacyID.String()),
		zap.Int("items", d.Overview.TotalItems),
	)
	return d, nil
}

func (s *dashboardService) ExpiryReport(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (*domain.ExpiryReport, error) {
	if err := authorize(actor, pharmacyID); err != nil {
		return nil, err
	}

	items, err := s.inventory.ListByPharmacy(ctx, pharmacyID)
	if err != nil {
		return nil, err
	}
	return domain.BuildExpiryReport(items, domain.DateOf(s.now())), nil
}
