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

var (
	ErrPharmacyNotFound      = fmt.Errorf("pharmacy %w", domain.ErrNotFound)
	ErrPharmacyAlreadyExists = domain.NewConflictError("owner already has a pharmacy")
)

const pharmacyColumns = `
	id, owner_id, name, address, city, latitude, longitude, verified, is_24_hours,
	application_status, rejection_reason, created_at, updated_at
`

// PharmacyRepository defines the interface for pharmacy data access
type PharmacyRepository interface {
	Create(ctx context.Context, pharmacy *domain.Pharmacy) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Pharmacy, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
	UpdateApplication(ctx context.Context, pharmacy *domain.Pharmacy) error
	ListByApplicationStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Pharmacy, error)
	ListWithCoordinates(ctx context.Context, verifiedOnly bool) ([]*domain.Pharmacy, error)
	ListApproved(ctx context.Context) ([]*domain.Pharmacy, error)
}

type pharmacyRepository struct {
	db *sqlx.DB
}

// NewPharmacyRepository creates a new instance of PharmacyRepository
func NewPharmacyRepository(db *sqlx.DB) PharmacyRepository {
	return &pharmacyRepository{db: db}
}

func (r *pharmacyRepository) Create(ctx context.Context, p *domain.Pharmacy) error {
	query := `
		INSERT INTO pharmacies (id, owner_id, name, address, city, latitude, longitude, verified, is_24_hours,
			application_status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Address,
		p.City,
		p.Latitude,
		p.Longitude,
		p.Verified,
		p.Is24Hours,
		string(p.ApplicationStatus),
		p.RejectionReason,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPharmacyAlreadyExists
		}
		return fmt.Errorf("failed to create pharmacy: %w", err)
	}
	return nil
}

func (r *pharmacyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	return r.findOne(ctx, `SELECT `+pharmacyColumns+` FROM pharmacies WHERE id = $1`, id)
}

func (r *pharmacyRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Pharmacy, error) {
	return r.findOne(ctx, `SELECT `+pharmacyColumns+` FROM pharmacies WHERE owner_id = $1`, ownerID)
}

func (r *pharmacyRepository) findOne(ctx context.Context, query string, arg any) (*domain.Pharmacy, error) {
	p := &domain.Pharmacy{}
	if err := r.db.GetContext(ctx, p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPharmacyNotFound
		}
		return nil, fmt.Errorf("failed to find pharmacy: %w", err)
	}
	return p, nil
}

func (r *pharmacyRepository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	query := `UPDATE pharmacies SET latitude = $2, longitude = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, lat, lng, at)
	if err != nil {
		return fmt.Errorf("failed to update pharmacy location: %w", err)
	}
	return requireRow(result, ErrPharmacyNotFound)
}

func (r *pharmacyRepository) UpdateApplication(ctx context.Context, p *domain.Pharmacy) error {
	query := `
		UPDATE pharmacies
		SET verified = $2, application_status = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, p.ID, p.Verified, string(p.ApplicationStatus), p.RejectionReason, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update pharmacy application: %w", err)
	}
	return requireRow(result, ErrPharmacyNotFound)
}

func (r *pharmacyRepository) ListByApplicationStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Pharmacy, error) {
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacies WHERE application_status = $1 ORDER BY created_at`
	return r.list(ctx, query, string(status))
}

func (r *pharmacyRepository) ListWithCoordinates(ctx context.Context, verifiedOnly bool) ([]*domain.Pharmacy, error) {
	query := `
		SELECT ` + pharmacyColumns + `
		FROM pharmacies
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL AND (verified OR NOT $1)
		ORDER BY name
	`
	return r.list(ctx, query, verifiedOnly)
}

func (r *pharmacyRepository) ListApproved(ctx context.Context) ([]*domain.Pharmacy, error) {
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacies WHERE application_status = 'approved' ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *pharmacyRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Pharmacy, error) {
	pharmacies := []*domain.Pharmacy{}
	if err := r.db.SelectContext(ctx, &pharmacies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pharmacies: %w", err)
	}
	return pharmacies, nil
}

// requireRow maps an update that touched nothing to the given not-found error
func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
