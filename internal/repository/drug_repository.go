package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"geopharm/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrDrugNotFound          = fmt.Errorf("drug %w", domain.ErrNotFound)
	ErrCategoryAlreadyExists = domain.NewConflictError("category with this name already exists")
)

// DrugRepository defines the interface for catalog data access
type DrugRepository interface {
	Create(ctx context.Context, drug *domain.Drug) error
	CreateCategory(ctx context.Context, category *domain.DrugCategory) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Drug, error)
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}

type drugRepository struct {
	db *sqlx.DB
}

// NewDrugRepository creates a new instance of DrugRepository
func NewDrugRepository(db *sqlx.DB) DrugRepository {
	return &drugRepository{db: db}
}

func (r *drugRepository) Create(ctx context.Context, drug *domain.Drug) error {
	query := `
		INSERT INTO drugs (id, name, generic_name, category_id, manufacturer, dosage, form, requires_prescription, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		drug.ID,
		drug.Name,
		drug.GenericName,
		drug.CategoryID,
		drug.Manufacturer,
		drug.Dosage,
		drug.Form,
		drug.RequiresPrescription,
		drug.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create drug: %w", err)
	}
	return nil
}

func (r *drugRepository) CreateCategory(ctx context.Context, category *domain.DrugCategory) error {
	query := `
		INSERT INTO drug_categories (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, category.ID, category.Name, category.Description, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *drugRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Drug, error) {
	query := `
		SELECT id, name, generic_name, category_id, manufacturer, dosage, form, requires_prescription, created_at
		FROM drugs
		WHERE id = $1
	`

	drug := &domain.Drug{}
	if err := r.db.GetContext(ctx, drug, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDrugNotFound
		}
		return nil, fmt.Errorf("failed to find drug: %w", err)
	}
	return drug, nil
}

// Suggest returns distinct drug names whose name or generic name contains the query
func (r *drugRepository) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	stmt := `
		SELECT name
		FROM drugs
		WHERE name ILIKE $1 OR generic_name ILIKE $1
		GROUP BY name
		ORDER BY name
		LIMIT $2
	`

	names := []string{}
	if err := r.db.SelectContext(ctx, &names, stmt, likePattern(strings.TrimSpace(query)), limit); err != nil {
		return nil, fmt.Errorf("failed to suggest drugs: %w", err)
	}
	return names, nil
}
