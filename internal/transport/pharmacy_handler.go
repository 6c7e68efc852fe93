package transport

import (
	"net/http"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ApplyRequest represents a pharmacy application
type ApplyRequest struct {
	Name      string   `json:"name" validate:"required,max=255"`
	Address   string   `json:"address" validate:"required,max=500"`
	City      string   `json:"city" validate:"max=100"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Is24Hours bool     `json:"is_24_hours"`
}

// LocationRequest represents a pharmacy location update
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// ReviewRequest represents an admin verdict on an application
type ReviewRequest struct {
	Decision        string `json:"decision" validate:"required,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
}

// PharmacyHandler handles HTTP requests for pharmacy onboarding
type PharmacyHandler struct {
	pharmacies service.PharmacyService
	logger     *zap.Logger
}

// NewPharmacyHandler creates a new PharmacyHandler
func NewPharmacyHandler(pharmacies service.PharmacyService, logger *zap.Logger) *PharmacyHandler {
	return &PharmacyHandler{
		pharmacies: pharmacies,
		logger:     logger.Named("pharmacies"),
	}
}

// RegisterRoutes registers the pharmacy routes
func (h *PharmacyHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/pharmacies", func(r chi.Router) {
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Apply)
			r.Get("/me", h.Mine)
			r.Patch("/me/location", h.UpdateLocation)
		})
	})
}

// RegisterAdminRoutes registers application review; callers must already be admins
func (h *PharmacyHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/pharmacies", h.ListByStatus)
	r.Post("/pharmacies/{id}/review", h.Review)
}

// Apply handles a new pharmacy application
func (h *PharmacyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req ApplyRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	p, err := h.pharmacies.Apply(r.Context(), actor, service.ApplyInput{
		Name:      req.Name,
		Address:   req.Address,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Is24Hours: req.Is24Hours,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, p)
}

// Get handles the public pharmacy profile
func (h *PharmacyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.pharmacies.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, p)
}

// Mine handles the caller's own pharmacy
func (h *PharmacyHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.pharmacies.Mine(r.Context(), actor)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, p)
}

// UpdateLocation handles setting the caller's pharmacy coordinates
func (h *PharmacyHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req LocationRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	p, err := h.pharmacies.UpdateLocation(r.Context(), actor, *req.Latitude, *req.Longitude)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, p)
}

// ListByStatus handles the admin application queue
func (h *PharmacyHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	raw := newQueryParams(r).String("status")
	if raw == "" {
		raw = string(domain.ApplicationPending)
	}
	status, err := domain.ParseApplicationStatus(raw)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	pharmacies, err := h.pharmacies.ListByStatus(r.Context(), actor, status)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if pharmacies == nil {
		pharmacies = []*domain.Pharmacy{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, pharmacies)
}

// Review handles approving or rejecting an application
func (h *PharmacyHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	p, err := h.pharmacies.Review(r.Context(), actor, id, domain.ReviewDecision(req.Decision), req.RejectionReason)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, p)
}
