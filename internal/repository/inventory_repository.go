package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"geopharm/internal/domain"
	"geopharm/internal/geo"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInventoryNotFound      = fmt.Errorf("inventory record %w", domain.ErrNotFound)
	ErrInventoryAlreadyExists = domain.NewConflictError("pharmacy already stocks this drug")
)

const inventoryColumns = `
	i.id, i.pharmacy_id, i.drug_id, i.quantity, i.price, i.cost_price, i.low_stock_threshold, i.status,
	i.expiry_date, i.batch_number, i.supplier, i.notes, i.last_updated, i.created_at
`

const offerColumns = `
	i.id AS inventory_id, d.id AS drug_id, d.name AS drug_name, d.generic_name, d.manufacturer, d.dosage, d.form,
	d.requires_prescription, c.id AS category_id, c.name AS category_name,
	p.id AS pharmacy_id, p.name AS pharmacy_name, p.address AS pharmacy_address, p.verified AS pharmacy_verified,
	p.latitude, p.longitude, i.price, i.quantity, i.status
`

const offerJoins = `
	FROM inventory i
	JOIN drugs d ON d.id = i.drug_id
	JOIN drug_categories c ON c.id = d.category_id
	JOIN pharmacies p ON p.id = i.pharmacy_id
`

// CandidateQuery selects discoverable offers for a search. Bounds, when set,
// restricts to pharmacies with coordinates inside the box. Candidates come
// back in SortBy order, nearest to Origin first for distance and relevance,
// so a Limit keeps the offers the caller would rank highest.
type CandidateQuery struct {
	Filters domain.SearchFilters
	Bounds  *geo.Box
	Origin  *domain.Origin
	SortBy  domain.SortBy
	Limit   int
}

// InventoryRepository defines the interface for inventory data access. Every
// mutation is scoped by the owning pharmacy.
type InventoryRepository interface {
	Create(ctx context.Context, rec *domain.InventoryRecord) error
	// Mutate locks the record, hands it to fn and writes the stock fields back
	// in one transaction. An error from fn rolls back and is returned as is.
	Mutate(ctx context.Context, id uuid.UUID, fn func(rec *domain.InventoryRecord) error) (*domain.InventoryRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.InventoryRecord, error)
	FindByIDs(ctx context.Context, pharmacyID uuid.UUID, ids []uuid.UUID) ([]*domain.InventoryRecord, error)
	ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID) ([]domain.InventoryItem, error)
	SearchCandidates(ctx context.Context, q CandidateQuery) ([]domain.Offer, error)
	ListOffersByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.Offer, error)
	ListStatusesByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.InventoryStatus, error)
}

type inventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository creates a new instance of InventoryRepository
func NewInventoryRepository(db *sqlx.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	query := `
		INSERT INTO inventory (id, pharmacy_id, drug_id, quantity, price, cost_price, low_stock_threshold, status,
			expiry_date, batch_number, supplier, notes, last_updated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.PharmacyID,
		rec.DrugID,
		rec.Quantity,
		rec.Price,
		rec.CostPrice,
		rec.LowStockThreshold,
		string(rec.Status),
		rec.ExpiryDate,
		rec.BatchNumber,
		rec.Supplier,
		rec.Notes,
		rec.LastUpdated,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInventoryAlreadyExists
		}
		return fmt.Errorf("failed to create inventory record: %w", err)
	}
	return nil
}

func (r *inventoryRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(rec *domain.InventoryRecord) error) (*domain.InventoryRecord, error) {
	rec := &domain.InventoryRecord{}

	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		// concurrent stock writes to the same record serialize on this lock
		err := tx.GetContext(ctx, rec, `SELECT `+inventoryColumns+` FROM inventory i WHERE i.id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInventoryNotFound
			}
			return fmt.Errorf("failed to lock inventory record: %w", err)
		}

		pharmacyID := rec.PharmacyID
		if err := fn(rec); err != nil {
			return err
		}
		return updateStock(ctx, tx, rec, pharmacyID)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// updateStock persists stock fields. Price is owned by the price ledger and is never written here.
func updateStock(ctx context.Context, tx *sqlx.Tx, rec *domain.InventoryRecord, pharmacyID uuid.UUID) error {
	query := `
		UPDATE inventory
		SET quantity = $3, cost_price = $4, low_stock_threshold = $5, status = $6, expiry_date = $7,
		    batch_number = $8, supplier = $9, notes = $10, last_updated = GREATEST(last_updated, $11)
		WHERE id = $1 AND pharmacy_id = $2
	`

	result, err := tx.ExecContext(ctx, query,
		rec.ID,
		pharmacyID,
		rec.Quantity,
		rec.CostPrice,
		rec.LowStockThreshold,
		string(rec.Status),
		rec.ExpiryDate,
		rec.BatchNumber,
		rec.Supplier,
		rec.Notes,
		rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to update inventory record: %w", err)
	}
	return requireRow(result, ErrInventoryNotFound)
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.InventoryRecord, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory i WHERE i.id = $1`

	rec := &domain.InventoryRecord{}
	if err := r.db.GetContext(ctx, rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to find inventory record: %w", err)
	}
	return rec, nil
}

// FindByIDs returns the records among ids owned by the pharmacy; others are omitted
func (r *inventoryRepository) FindByIDs(ctx context.Context, pharmacyID uuid.UUID, ids []uuid.UUID) ([]*domain.InventoryRecord, error) {
	recs := []*domain.InventoryRecord{}
	if len(ids) == 0 {
		return recs, nil
	}

	query, args, err := sqlx.In(`SELECT `+inventoryColumns+` FROM inventory i WHERE i.pharmacy_id = ? AND i.id IN (?)`, pharmacyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare inventory lookup: %w", err)
	}
	query = r.db.Rebind(query)

	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find inventory records: %w", err)
	}
	return recs, nil
}

func (r *inventoryRepository) ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID) ([]domain.InventoryItem, error) {
	return listInventoryItems(ctx, r.db, pharmacyID)
}

func listInventoryItems(ctx context.Context, q sqlx.QueryerContext, pharmacyID uuid.UUID) ([]domain.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `, d.name AS drug_name, c.name AS category_name
		FROM inventory i
		JOIN drugs d ON d.id = i.drug_id
		JOIN drug_categories c ON c.id = d.category_id
		WHERE i.pharmacy_id = $1
		ORDER BY d.name
	`

	items := []domain.InventoryItem{}
	if err := sqlx.SelectContext(ctx, q, &items, query, pharmacyID); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

// SearchCandidates narrows offers in SQL. Callers still apply the full
// predicate and the exact radius check.
func (r *inventoryRepository) SearchCandidates(ctx context.Context, q CandidateQuery) ([]domain.Offer, error) {
	var (
		conds = []string{"i.status IN ('available', 'low_stock')"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	f := q.Filters
	if text := strings.TrimSpace(f.Query); text != "" {
		p := arg(likePattern(text))
		conds = append(conds, fmt.Sprintf("(d.name ILIKE %[1]s OR d.generic_name ILIKE %[1]s OR d.manufacturer ILIKE %[1]s)", p))
	}
	if f.Category != "" {
		if id, err := uuid.Parse(f.Category); err == nil {
			conds = append(conds, "c.id = "+arg(id))
		} else {
			conds = append(conds, "LOWER(c.name) = LOWER("+arg(f.Category)+")")
		}
	}
	if f.MinPrice != nil {
		conds = append(conds, "i.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "i.price <= "+arg(*f.MaxPrice))
	}
	if f.RequiresPrescription != nil {
		conds = append(conds, "d.requires_prescription = "+arg(*f.RequiresPrescription))
	}
	if f.DrugForm != "" {
		conds = append(conds, "d.form ILIKE "+arg(likePattern(f.DrugForm)))
	}
	if f.Manufacturer != "" {
		conds = append(conds, "d.manufacturer ILIKE "+arg(likePattern(f.Manufacturer)))
	}
	if f.VerifiedOnly {
		conds = append(conds, "p.verified")
	}
	if b := q.Bounds; b != nil {
		conds = append(conds,
			"p.latitude IS NOT NULL AND p.longitude IS NOT NULL",
			fmt.Sprintf("p.latitude BETWEEN %s AND %s", arg(b.MinLat), arg(b.MaxLat)),
			fmt.Sprintf("p.longitude BETWEEN %s AND %s", arg(b.MinLng), arg(b.MaxLng)),
		)
	}

	query := `SELECT ` + offerColumns + offerJoins + ` WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY ` + candidateOrder(q, arg)
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	offers := []domain.Offer{}
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search inventory: %w", err)
	}
	return offers, nil
}

// candidateOrder mirrors domain.SortResults. The distance term is the
// haversine central angle, which grows with great-circle distance.
func candidateOrder(q CandidateQuery, arg func(any) string) string {
	switch q.SortBy {
	case domain.SortPriceAsc:
		return "i.price, d.name, i.id"
	case domain.SortPriceDesc:
		return "i.price DESC, d.name, i.id"
	case domain.SortName:
		return "LOWER(d.name), i.price, i.id"
	}
	if q.Origin == nil {
		return "d.name, i.price, i.id"
	}

	lat, lng := arg(q.Origin.Latitude), arg(q.Origin.Longitude)
	return fmt.Sprintf(`asin(sqrt(
		power(sin(radians(p.latitude - %[1]s) / 2), 2) +
		cos(radians(%[1]s)) * cos(radians(p.latitude)) * power(sin(radians(p.longitude - %[2]s) / 2), 2)
	)) NULLS LAST, d.name, i.price, i.id`, lat, lng)
}

func (r *inventoryRepository) ListOffersByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + offerJoins + `
		WHERE i.drug_id = $1 AND i.status IN ('available', 'low_stock')
		ORDER BY i.price
	`

	offers := []domain.Offer{}
	if err := r.db.SelectContext(ctx, &offers, query, drugID); err != nil {
		return nil, fmt.Errorf("failed to list drug offers: %w", err)
	}
	return offers, nil
}

func (r *inventoryRepository) ListStatusesByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.InventoryStatus, error) {
	statuses := []domain.InventoryStatus{}
	if err := r.db.SelectContext(ctx, &statuses, `SELECT status FROM inventory WHERE drug_id = $1`, drugID); err != nil {
		return nil, fmt.Errorf("failed to list drug statuses: %w", err)
	}
	return statuses, nil
}
