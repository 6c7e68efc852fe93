package service

import (
	"context"
	"strings"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/geo"
	"geopharm/internal/notify"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyInput is a pharmacy application
type ApplyInput struct {
	Name      string
	Address   string
	City      string
	Latitude  *float64
	Longitude *float64
	Is24Hours bool
}

// ApplicationReviewedPayload is the body of an application_reviewed event
type ApplicationReviewedPayload struct {
	OwnerID         uuid.UUID                `json:"owner_id"`
	Status          domain.ApplicationStatus `json:"status"`
	RejectionReason string                   `json:"rejection_reason,omitempty"`
}

// PharmacyService handles pharmacy onboarding and location
type PharmacyService interface {
	Apply(ctx context.Context, actor domain.Actor, in ApplyInput) (*domain.Pharmacy, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error)
	Mine(ctx context.Context, actor domain.Actor) (*domain.Pharmacy, error)
	UpdateLocation(ctx context.Context, actor domain.Actor, lat, lng float64) (*domain.Pharmacy, error)
	Review(ctx context.Context, actor domain.Actor, id uuid.UUID, decision domain.ReviewDecision, reason string) (*domain.Pharmacy, error)
	ListByStatus(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus) ([]*domain.Pharmacy, error)
}

type pharmacyService struct {
	pharmacies repository.PharmacyRepository
	notifier   notify.Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewPharmacyService creates a new instance of PharmacyService
func NewPharmacyService(
	pharmacies repository.PharmacyRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
	opts ...Option,
) PharmacyService {
	o := buildOptions(opts)
	return &pharmacyService{
		pharmacies: pharmacies,
		notifier:   notifier,
		logger:     logger.Named("pharmacies"),
		now:        o.now,
	}
}

// Apply registers a pending pharmacy owned by the caller
func (s *pharmacyService) Apply(ctx context.Context, actor domain.Actor, in ApplyInput) (*domain.Pharmacy, error) {
	if actor.UserID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, domain.NewValidationError("address", "is required")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, domain.NewValidationError("latitude", "latitude and longitude must be given together")
	}
	if in.Latitude != nil {
		if err := geo.ValidateCoordinates(*in.Latitude, *in.Longitude); err != nil {
			return nil, err
		}
	}

	now := s.now()
	p := &domain.Pharmacy{
		ID:                uuid.New(),
		OwnerID:           actor.UserID,
		Name:              strings.TrimSpace(in.Name),
		Address:           strings.TrimSpace(in.Address),
		City:              strings.TrimSpace(in.City),
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		Is24Hours:         in.Is24Hours,
		ApplicationStatus: domain.ApplicationPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.pharmacies.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Pharmacy application received",
		zap.String("pharmacy_id", p.ID.String()),
		zap.String("owner_id", p.OwnerID.String()),
	)
	return p, nil
}

func (s *pharmacyService) Get(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	return s.pharmacies.FindByID(ctx, id)
}

// Mine returns the pharmacy owned by the caller
func (s *pharmacyService) Mine(ctx context.Context, actor domain.Actor) (*domain.Pharmacy, error) {
	return s.pharmacies.FindByOwner(ctx, actor.UserID)
}

// UpdateLocation sets the coordinates of the caller's pharmacy
func (s *pharmacyService) UpdateLocation(ctx context.Context, actor domain.Actor, lat, lng float64) (*domain.Pharmacy, error) {
	pharmacyID, err := ownPharmacy(actor)
	if err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	if err := s.pharmacies.UpdateLocation(ctx, pharmacyID, lat, lng, s.now()); err != nil {
		return nil, err
	}
	return s.pharmacies.FindByID(ctx, pharmacyID)
}

// Review approves or rejects an application; admins only
func (s *pharmacyService) Review(ctx context.Context, actor domain.Actor, id uuid.UUID, decision domain.ReviewDecision, reason string) (*domain.Pharmacy, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	p, err := s.pharmacies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := p.ApplyReview(decision, strings.TrimSpace(reason), now); err != nil {
		return nil, err
	}
	if err := s.pharmacies.UpdateApplication(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Pharmacy application reviewed",
		zap.String("pharmacy_id", p.ID.String()),
		zap.String("status", string(p.ApplicationStatus)),
	)
	notify.Emit(ctx, s.notifier, s.logger, notify.NewEvent(notify.EventApplicationReviewed, p.ID, now, ApplicationReviewedPayload{
		OwnerID:         p.OwnerID,
		Status:          p.ApplicationStatus,
		RejectionReason: p.RejectionReason,
	}))
	return p, nil
}

func (s *pharmacyService) ListByStatus(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus) ([]*domain.Pharmacy, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.pharmacies.ListByApplicationStatus(ctx, status)
}
