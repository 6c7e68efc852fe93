package domain

import (
	"time"

	"github.com/google/uuid"
)

// DrugCategory groups drugs in the catalog
type DrugCategory struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Drug is an immutable catalog entry
type Drug struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	GenericName          string    `json:"generic_name" db:"generic_name"`
	CategoryID           uuid.UUID `json:"category_id" db:"category_id"`
	Manufacturer         string    `json:"manufacturer" db:"manufacturer"`
	Dosage               string    `json:"dosage" db:"dosage"`
	Form                 string    `json:"form" db:"form"`
	RequiresPrescription bool      `json:"requires_prescription" db:"requires_prescription"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// AvailabilityStatus summarizes how widely a drug is stocked
type AvailabilityStatus string

const (
	AvailabilityNotStocked           AvailabilityStatus = "not_stocked"
	AvailabilityOutOfStockEverywhere AvailabilityStatus = "out_of_stock_everywhere"
	AvailabilityWidelyAvailable      AvailabilityStatus = "widely_available"
	AvailabilityLimited              AvailabilityStatus = "limited_availability"
)

// widelyAvailableRatio is the share of stocking pharmacies that must be able to sell
const widelyAvailableRatio = 0.7

// DeriveAvailability classifies a drug from the statuses of every record that stocks it
func DeriveAvailability(statuses []InventoryStatus) AvailabilityStatus {
	if len(statuses) == 0 {
		return AvailabilityNotStocked
	}

	sellable := 0
	for _, s := range statuses {
		if s.Discoverable() {
			sellable++
		}
	}

	switch {
	case sellable == 0:
		return AvailabilityOutOfStockEverywhere
	case float64(sellable)/float64(len(statuses)) >= widelyAvailableRatio:
		return AvailabilityWidelyAvailable
	default:
		return AvailabilityLimited
	}
}

// DrugAvailability reports how widely a drug can be bought right now
type DrugAvailability struct {
	DrugID             uuid.UUID          `json:"drug_id"`
	Status             AvailabilityStatus `json:"status"`
	StockingPharmacies int                `json:"stocking_pharmacies"`
	SellingPharmacies  int                `json:"selling_pharmacies"`
}
