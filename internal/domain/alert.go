package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlertType names an operational condition on an inventory record
type AlertType string

const (
	AlertLowStock     AlertType = "low_stock"
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertExpired      AlertType = "expired"
)

// AlertTypes lists every alert type in evaluation order
var AlertTypes = []AlertType{AlertOutOfStock, AlertLowStock, AlertExpiringSoon, AlertExpired}

// DefaultExpiryWindowDays is how far ahead expiring_soon looks
const DefaultExpiryWindowDays = 30

// ParseAlertType validates a raw alert type
func ParseAlertType(raw string) (AlertType, error) {
	switch t := AlertType(strings.ToLower(strings.TrimSpace(raw))); t {
	case AlertLowStock, AlertOutOfStock, AlertExpiringSoon, AlertExpired:
		return t, nil
	default:
		return "", NewValidationError("alert_type", "must be one of low_stock, out_of_stock, expiring_soon, expired")
	}
}

// Alert is an operational notice. At most one unresolved alert exists per
// (inventory, alert type).
type Alert struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	InventoryID uuid.UUID  `json:"inventory_id" db:"inventory_id"`
	AlertType   AlertType  `json:"alert_type" db:"alert_type"`
	Message     string     `json:"message" db:"message"`
	IsResolved  bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Resolve marks the alert handled
func (a *Alert) Resolve(now time.Time) {
	a.IsResolved = true
	a.ResolvedAt = &now
}

// AlertView is an alert with the context needed to display it
type AlertView struct {
	Alert
	PharmacyID uuid.UUID `json:"pharmacy_id" db:"pharmacy_id"`
	DrugName   string    `json:"drug_name" db:"drug_name"`
}

// AlertCandidate is an alert a record should currently carry
type AlertCandidate struct {
	Type    AlertType
	Message string
}

// EvaluateAlerts returns every alert condition that holds for the record.
// Conditions are independent; one record may trigger several.
func EvaluateAlerts(rec *InventoryRecord, drugName string, today time.Time, windowDays int) []AlertCandidate {
	var out []AlertCandidate

	switch {
	case rec.Quantity == 0:
		out = append(out, AlertCandidate{
			Type:    AlertOutOfStock,
			Message: fmt.Sprintf("%s is out of stock", drugName),
		})
	case rec.Quantity > 0 && rec.Quantity <= rec.LowStockThreshold:
		out = append(out, AlertCandidate{
			Type:    AlertLowStock,
			Message: fmt.Sprintf("%s is running low (only %d left)", drugName, rec.Quantity),
		})
	}

	if days, ok := rec.DaysUntilExpiry(today); ok {
		switch {
		case days < 0:
			out = append(out, AlertCandidate{
				Type:    AlertExpired,
				Message: fmt.Sprintf("%s expired %d days ago", drugName, -days),
			})
		case days <= windowDays:
			out = append(out, AlertCandidate{
				Type:    AlertExpiringSoon,
				Message: fmt.Sprintf("%s expires in %d days", drugName, days),
			})
		}
	}

	return out
}
