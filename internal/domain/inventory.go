package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryStatus is the availability of a record. Only StatusDiscontinued is
// ever set directly; the other values are derived from quantity and threshold.
type InventoryStatus string

const (
	StatusAvailable    InventoryStatus = "available"
	StatusLowStock     InventoryStatus = "low_stock"
	StatusOutOfStock   InventoryStatus = "out_of_stock"
	StatusDiscontinued InventoryStatus = "discontinued"
)

// DefaultLowStockThreshold applies when a record is created without a threshold
const DefaultLowStockThreshold = 10

// MinPrice is the currency floor for selling and cost prices
var MinPrice = decimal.New(1, -2)

// ParseInventoryStatus validates a raw status value
func ParseInventoryStatus(raw string) (InventoryStatus, error) {
	switch s := InventoryStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusAvailable, StatusLowStock, StatusOutOfStock, StatusDiscontinued:
		return s, nil
	default:
		return "", NewValidationError("status", "must be one of available, low_stock, out_of_stock, discontinued")
	}
}

// Discoverable reports whether records in this status surface in patient search
func (s InventoryStatus) Discoverable() bool {
	return s == StatusAvailable || s == StatusLowStock
}

// RecomputeStatus derives the status for the given quantity and threshold.
// A discontinued record stays discontinued.
func RecomputeStatus(quantity, threshold int, current InventoryStatus) InventoryStatus {
	if current == StatusDiscontinued {
		return StatusDiscontinued
	}
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= threshold:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

// InventoryRecord is one drug stocked by one pharmacy
type InventoryRecord struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	PharmacyID        uuid.UUID           `json:"pharmacy_id" db:"pharmacy_id"`
	DrugID            uuid.UUID           `json:"drug_id" db:"drug_id"`
	Quantity          int                 `json:"quantity" db:"quantity"`
	Price             decimal.Decimal     `json:"price" db:"price"`
	CostPrice         decimal.NullDecimal `json:"cost_price" db:"cost_price"`
	LowStockThreshold int                 `json:"low_stock_threshold" db:"low_stock_threshold"`
	Status            InventoryStatus     `json:"status" db:"status"`
	ExpiryDate        *time.Time          `json:"expiry_date,omitempty" db:"expiry_date"`
	BatchNumber       string              `json:"batch_number" db:"batch_number"`
	Supplier          string              `json:"supplier" db:"supplier"`
	Notes             string              `json:"notes" db:"notes"`
	LastUpdated       time.Time           `json:"last_updated" db:"last_updated"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
}

// NewInventoryParams carries the owner-supplied fields of a new record
type NewInventoryParams struct {
	PharmacyID        uuid.UUID
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

// NewInventoryRecord creates a validated record with its status derived
func NewInventoryRecord(p NewInventoryParams, now time.Time) (*InventoryRecord, error) {
	if p.PharmacyID == uuid.Nil {
		return nil, NewValidationError("pharmacy_id", "is required")
	}
	if p.DrugID == uuid.Nil {
		return nil, NewValidationError("drug_id", "is required")
	}
	if p.Quantity < 0 {
		return nil, NewValidationError("quantity", "cannot be negative")
	}
	if err := ValidatePrice("price", p.Price); err != nil {
		return nil, err
	}

	threshold := DefaultLowStockThreshold
	if p.LowStockThreshold != nil {
		threshold = *p.LowStockThreshold
	}
	if threshold < 0 {
		return nil, NewValidationError("low_stock_threshold", "cannot be negative")
	}

	rec := &InventoryRecord{
		ID:                uuid.New(),
		PharmacyID:        p.PharmacyID,
		DrugID:            p.DrugID,
		Quantity:          p.Quantity,
		Price:             p.Price.Round(2),
		LowStockThreshold: threshold,
		BatchNumber:       p.BatchNumber,
		Supplier:          p.Supplier,
		Notes:             p.Notes,
		LastUpdated:       now,
		CreatedAt:         now,
	}

	if p.CostPrice != nil {
		if err := ValidatePrice("cost_price", *p.CostPrice); err != nil {
			return nil, err
		}
		rec.CostPrice = decimal.NewNullDecimal(p.CostPrice.Round(2))
	}
	if p.ExpiryDate != nil {
		d := DateOf(*p.ExpiryDate)
		rec.ExpiryDate = &d
	}

	rec.Status = RecomputeStatus(rec.Quantity, rec.LowStockThreshold, "")
	return rec, nil
}

// ValidatePrice enforces the currency floor
func ValidatePrice(field string, price decimal.Decimal) error {
	if price.LessThan(MinPrice) {
		return NewValidationError(field, fmt.Sprintf("must be at least %s", MinPrice.StringFixed(2)))
	}
	return nil
}

// SetQuantity replaces the on-hand quantity and re-derives the status
func (r *InventoryRecord) SetQuantity(quantity int, now time.Time) error {
	if quantity < 0 {
		return NewValidationError("quantity", "cannot be negative")
	}
	r.Quantity = quantity
	r.refresh(now)
	return nil
}

// AdjustQuantity applies a stock delta; the result may not drop below zero
func (r *InventoryRecord) AdjustQuantity(delta int, now time.Time) error {
	next := r.Quantity + delta
	if next < 0 {
		return NewValidationError("quantity", fmt.Sprintf("cannot remove %d units, only %d on hand", -delta, r.Quantity))
	}
	return r.SetQuantity(next, now)
}

// SetThreshold replaces the low-stock threshold and re-derives the status
func (r *InventoryRecord) SetThreshold(threshold int, now time.Time) error {
	if threshold < 0 {
		return NewValidationError("low_stock_threshold", "cannot be negative")
	}
	r.LowStockThreshold = threshold
	r.refresh(now)
	return nil
}

// Discontinue applies the administrative override
func (r *InventoryRecord) Discontinue(now time.Time) {
	r.Status = StatusDiscontinued
	r.touch(now)
}

// Reinstate lifts the discontinued override and returns to the derived status
func (r *InventoryRecord) Reinstate(now time.Time) {
	r.Status = RecomputeStatus(r.Quantity, r.LowStockThreshold, "")
	r.touch(now)
}

// CheckConsistency verifies the stored status against the derivation rule
func (r *InventoryRecord) CheckConsistency() error {
	if r.Status == StatusDiscontinued {
		return nil
	}
	want := RecomputeStatus(r.Quantity, r.LowStockThreshold, r.Status)
	if r.Status != want {
		return &ConsistencyError{
			Entity: "inventory " + r.ID.String(),
			Detail: fmt.Sprintf("status %q does not match quantity %d with threshold %d (want %q)",
				r.Status, r.Quantity, r.LowStockThreshold, want),
		}
	}
	return nil
}

func (r *InventoryRecord) refresh(now time.Time) {
	r.Status = RecomputeStatus(r.Quantity, r.LowStockThreshold, r.Status)
	r.touch(now)
}

// touch advances LastUpdated without ever moving it backwards
func (r *InventoryRecord) touch(now time.Time) {
	if now.After(r.LastUpdated) {
		r.LastUpdated = now
	}
}

// ProfitMargin returns the margin percentage and false when no cost data exists
func ProfitMargin(price decimal.Decimal, cost decimal.NullDecimal) (decimal.Decimal, bool) {
	if !cost.Valid || !cost.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return price.Sub(cost.Decimal).Div(cost.Decimal).Mul(decimal.NewFromInt(100)), true
}

// ProfitMargin returns the record's margin percentage, if cost data exists
func (r *InventoryRecord) ProfitMargin() (decimal.Decimal, bool) {
	return ProfitMargin(r.Price, r.CostPrice)
}

// Value is quantity times selling price
func (r *InventoryRecord) Value() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// PotentialProfit is (price - cost) * quantity, if cost data exists
func (r *InventoryRecord) PotentialProfit() (decimal.Decimal, bool) {
	if !r.CostPrice.Valid {
		return decimal.Zero, false
	}
	return r.Price.Sub(r.CostPrice.Decimal).Mul(decimal.NewFromInt(int64(r.Quantity))), true
}

// DaysUntilExpiry is negative once the expiry date has passed; false when no date is set
func (r *InventoryRecord) DaysUntilExpiry(today time.Time) (int, bool) {
	if r.ExpiryDate == nil {
		return 0, false
	}
	return DaysBetween(today, *r.ExpiryDate), true
}

// IsExpired is true strictly after the expiry date
func (r *InventoryRecord) IsExpired(today time.Time) bool {
	days, ok := r.DaysUntilExpiry(today)
	return ok && days < 0
}

// DateOf truncates t to its calendar date in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from one date to another
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
