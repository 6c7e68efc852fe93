package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus tracks the review state of a pharmacy application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// ParseApplicationStatus validates a raw status value
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch s := ApplicationStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return s, nil
	default:
		return "", NewValidationError("status", "must be one of pending, approved, rejected")
	}
}

// Pharmacy is a storefront owned by exactly one operator
type Pharmacy struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	OwnerID           uuid.UUID         `json:"owner_id" db:"owner_id"`
	Name              string            `json:"name" db:"name"`
	Address           string            `json:"address" db:"address"`
	City              string            `json:"city" db:"city"`
	Latitude          *float64          `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64          `json:"longitude,omitempty" db:"longitude"`
	Verified          bool              `json:"verified" db:"verified"`
	Is24Hours         bool              `json:"is_24_hours" db:"is_24_hours"`
	ApplicationStatus ApplicationStatus `json:"application_status" db:"application_status"`
	RejectionReason   string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// HasCoordinates reports whether both coordinates are known
func (p *Pharmacy) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// ReviewDecision is an admin verdict on a pending application
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// ApplyReview moves the application to its reviewed state
func (p *Pharmacy) ApplyReview(decision ReviewDecision, reason string, now time.Time) error {
	switch decision {
	case DecisionApprove:
		p.Verified = true
		p.ApplicationStatus = ApplicationApproved
		p.RejectionReason = ""
	case DecisionReject:
		if strings.TrimSpace(reason) == "" {
			return NewValidationError("rejection_reason", "is required when rejecting an application")
		}
		p.Verified = false
		p.ApplicationStatus = ApplicationRejected
		p.RejectionReason = reason
	default:
		return NewValidationError("decision", "must be approve or reject")
	}
	p.UpdatedAt = now
	return nil
}

// NearbyPharmacy is a pharmacy with its distance from a search origin
type NearbyPharmacy struct {
	Pharmacy   *Pharmacy `json:"pharmacy"`
	DistanceKm float64   `json:"distance_km"`
}
