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
)

var ErrAlertNotFound = fmt.Errorf("alert %w", domain.ErrNotFound)

const alertViewColumns = `
	a.id, a.inventory_id, a.alert_type, a.message, a.is_resolved, a.resolved_at, a.created_at,
	i.pharmacy_id, d.name AS drug_name
`

const alertViewJoins = `
	FROM inventory_alerts a
	JOIN inventory i ON i.id = a.inventory_id
	JOIN drugs d ON d.id = i.drug_id
`

// AlertFilter narrows an alert listing; nil fields match everything
type AlertFilter struct {
	Resolved *bool
	Type     *domain.AlertType
}

// AlertRepository defines the interface for alert data access
type AlertRepository interface {
	// CreateIfAbsent inserts the alert unless an unresolved alert of the same
	// type already exists for the record. It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AlertView, error)
	ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID, filter AlertFilter) ([]domain.AlertView, error)
	Resolve(ctx context.Context, id uuid.UUID, at time.Time) error
	ResolveAllByPharmacy(ctx context.Context, pharmacyID uuid.UUID, at time.Time) (int, error)
}

type alertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new instance of AlertRepository
func NewAlertRepository(db *sqlx.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) CreateIfAbsent(ctx context.Context, a *domain.Alert) (bool, error) {
	query := `
		INSERT INTO inventory_alerts (id, inventory_id, alert_type, message, is_resolved, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NULL, $5)
		ON CONFLICT (inventory_id, alert_type) WHERE is_resolved = FALSE DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, a.ID, a.InventoryID, string(a.AlertType), a.Message, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *alertRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AlertView, error) {
	query := `SELECT ` + alertViewColumns + alertViewJoins + ` WHERE a.id = $1`

	view := &domain.AlertView{}
	if err := r.db.GetContext(ctx, view, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to find alert: %w", err)
	}
	return view, nil
}

func (r *alertRepository) ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID, filter AlertFilter) ([]domain.AlertView, error) {
	query := `SELECT ` + alertViewColumns + alertViewJoins + ` WHERE i.pharmacy_id = $1`
	args := []any{pharmacyID}

	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		query += fmt.Sprintf(" AND a.is_resolved = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		query += fmt.Sprintf(" AND a.alert_type = $%d", len(args))
	}
	query += " ORDER BY a.created_at DESC, a.id"

	alerts := []domain.AlertView{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Resolve marks an unresolved alert handled; resolving twice is a no-op
func (r *alertRepository) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE inventory_alerts SET is_resolved = TRUE, resolved_at = $2 WHERE id = $1 AND is_resolved = FALSE`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM inventory_alerts WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("failed to check alert: %w", err)
		}
		if !exists {
			return ErrAlertNotFound
		}
	}
	return nil
}

func (r *alertRepository) ResolveAllByPharmacy(ctx context.Context, pharmacyID uuid.UUID, at time.Time) (int, error) {
	query := `
		UPDATE inventory_alerts a
		SET is_resolved = TRUE, resolved_at = $2
		FROM inventory i
		WHERE i.id = a.inventory_id AND i.pharmacy_id = $1 AND a.is_resolved = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, pharmacyID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve alerts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

func listUnresolvedAlerts(ctx context.Context, q sqlx.QueryerContext, pharmacyID uuid.UUID) ([]domain.Alert, error) {
	query := `
		SELECT a.id, a.inventory_id, a.alert_type, a.message, a.is_resolved, a.resolved_at, a.created_at
		FROM inventory_alerts a
		JOIN inventory i ON i.id = a.inventory_id
		WHERE i.pharmacy_id = $1 AND a.is_resolved = FALSE
	`

	alerts := []domain.Alert{}
	if err := sqlx.SelectContext(ctx, q, &alerts, query, pharmacyID); err != nil {
		return nil, fmt.Errorf("failed to list unresolved alerts: %w", err)
	}
	return alerts, nil
}
