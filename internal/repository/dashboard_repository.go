package repository

import (
	"context"
	"database/sql"

	"geopharm/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DashboardRepository reads everything a dashboard needs from one snapshot
type DashboardRepository interface {
	LoadSnapshot(ctx context.Context, pharmacyID uuid.UUID, recentChanges int) (*domain.PharmacySnapshot, error)
}

type dashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository creates a new instance of DashboardRepository
func NewDashboardRepository(db *sqlx.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

// LoadSnapshot runs every read in a single repeatable-read transaction so the
// totals, alerts and price history agree with each other
func (r *dashboardRepository) LoadSnapshot(ctx context.Context, pharmacyID uuid.UUID, recentChanges int) (*domain.PharmacySnapshot, error) {
	snap := &domain.PharmacySnapshot{PharmacyID: pharmacyID}

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := withTx(ctx, r.db, opts, func(tx *sqlx.Tx) error {
		var err error
		if snap.Items, err = listInventoryItems(ctx, tx, pharmacyID); err != nil {
			return err
		}
		if snap.UnresolvedAlerts, err = listUnresolvedAlerts(ctx, tx, pharmacyID); err != nil {
			return err
		}
		snap.RecentPriceChanges, err = listRecentPriceChanges(ctx, tx, pharmacyID, recentChanges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
