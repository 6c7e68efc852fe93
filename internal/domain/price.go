package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceChange is an append-only ledger entry written with every price mutation
type PriceChange struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InventoryID uuid.UUID       `json:"inventory_id" db:"inventory_id"`
	OldPrice    decimal.Decimal `json:"old_price" db:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price" db:"new_price"`
	ChangedBy   *uuid.UUID      `json:"changed_by,omitempty" db:"changed_by"`
	Reason      string          `json:"reason" db:"reason"`
	ChangedAt   time.Time       `json:"changed_at" db:"changed_at"`
}

// PriceChangeView is a ledger entry with the drug it belongs to
type PriceChangeView struct {
	PriceChange
	DrugName string `json:"drug_name" db:"drug_name"`
}

// PriceTrendEntry is a ledger entry with its movement precomputed
type PriceTrendEntry struct {
	PriceChange
	Change PriceDelta `json:"change"`
}

// PriceDirection classifies a price movement
type PriceDirection string

const (
	PriceIncrease PriceDirection = "increase"
	PriceDecrease PriceDirection = "decrease"
	PriceNoChange PriceDirection = "no_change"
)

// PriceDelta describes the movement between two prices
type PriceDelta struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Direction  PriceDirection  `json:"direction"`
}

// FormatPriceChange computes the amount, percentage and direction of a change
func FormatPriceChange(oldPrice, newPrice decimal.Decimal) PriceDelta {
	amount := newPrice.Sub(oldPrice)
	pct := decimal.Zero
	if oldPrice.IsPositive() {
		pct = amount.Div(oldPrice).Mul(decimal.NewFromInt(100)).Round(2)
	}

	dir := PriceNoChange
	switch amount.Sign() {
	case 1:
		dir = PriceIncrease
	case -1:
		dir = PriceDecrease
	}

	return PriceDelta{Amount: amount, Percentage: pct, Direction: dir}
}

// PriceAdjustment is a bulk price rule: either PercentageAdjustment or FixedAdjustment
type PriceAdjustment interface {
	// Apply returns the adjusted price, rounded to cents and clamped to MinPrice
	Apply(old decimal.Decimal) decimal.Decimal
	isPriceAdjustment()
}

// PercentageAdjustment scales a price by (1 + Percent/100)
type PercentageAdjustment struct {
	Percent float64
}

func (p PercentageAdjustment) Apply(old decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(p.Percent).Div(decimal.NewFromInt(100)))
	return clampPrice(old.Mul(factor))
}

func (PercentageAdjustment) isPriceAdjustment() {}

// FixedAdjustment adds a fixed amount to a price
type FixedAdjustment struct {
	Amount decimal.Decimal
}

func (f FixedAdjustment) Apply(old decimal.Decimal) decimal.Decimal {
	return clampPrice(old.Add(f.Amount))
}

func (FixedAdjustment) isPriceAdjustment() {}

func clampPrice(p decimal.Decimal) decimal.Decimal {
	p = p.Round(2)
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	return p
}

// ParsePriceAdjustment builds an adjustment from a wire-level type and amount
func ParsePriceAdjustment(updateType string, amount decimal.Decimal) (PriceAdjustment, error) {
	switch strings.ToLower(strings.TrimSpace(updateType)) {
	case "", "percentage":
		pct, _ := amount.Float64()
		return PercentageAdjustment{Percent: pct}, nil
	case "fixed":
		return FixedAdjustment{Amount: amount}, nil
	default:
		return nil, NewValidationError("update_type", "must be percentage or fixed")
	}
}
