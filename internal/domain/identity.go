package domain

import "github.com/google/uuid"

// Role is the kind of identity acting on a call
type Role string

const (
	RolePatient       Role = "patient"
	RolePharmacyOwner Role = "pharmacy_owner"
	RoleAdmin         Role = "admin"
	RoleSystem        Role = "system"
)

// Actor is the identity on whose behalf an operation runs. It is supplied by
// the identity collaborator and trusted as-is.
type Actor struct {
	UserID     uuid.UUID `json:"user_id"`
	Role       Role      `json:"role"`
	PharmacyID uuid.UUID `json:"pharmacy_id,omitempty"`
}

// SystemActor returns the actor used by scheduled sweeps
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// CanManage reports whether the actor may mutate records of the given pharmacy
func (a Actor) CanManage(pharmacyID uuid.UUID) bool {
	if a.Role == RoleSystem {
		return true
	}
	return a.Role == RolePharmacyOwner && a.PharmacyID != uuid.Nil && a.PharmacyID == pharmacyID
}

// IsPatient reports whether the actor searches as a patient
func (a Actor) IsPatient() bool {
	return a.Role == RolePatient
}

// ChangedBy returns the user reference recorded in audit rows; nil for system actions
func (a Actor) ChangedBy() *uuid.UUID {
	if a.Role == RoleSystem || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
