package service

import (
	"fmt"
	"time"

	"geopharm/internal/domain"

	"github.com/google/uuid"
)

// Option configures a service
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests and replays
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// authorize rejects actors that do not own the pharmacy
func authorize(actor domain.Actor, pharmacyID uuid.UUID) error {
	if !actor.CanManage(pharmacyID) {
		return fmt.Errorf("%w: pharmacy %s", domain.ErrScopeViolation, pharmacyID)
	}
	return nil
}

// ownPharmacy returns the pharmacy an owner acts for
func ownPharmacy(actor domain.Actor) (uuid.UUID, error) {
	if actor.Role != domain.RolePharmacyOwner || actor.PharmacyID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: caller does not operate a pharmacy", domain.ErrScopeViolation)
	}
	return actor.PharmacyID, nil
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrScopeViolation)
	}
	return nil
}

// ErrNoPriceData is returned when no pharmacy currently sells a drug
var ErrNoPriceData = fmt.Errorf("price data %w", domain.ErrNotFound)
