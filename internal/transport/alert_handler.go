package transport

import (
	"net/http"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"
	"geopharm/internal/repository"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ScanResponse reports how many alerts a scan created
type ScanResponse struct {
	Created int `json:"created"`
}

// ResolveAllResponse reports how many alerts were resolved
type ResolveAllResponse struct {
	Resolved int `json:"resolved"`
}

// AlertHandler handles HTTP requests for an owner's inventory alerts
type AlertHandler struct {
	alerts service.AlertEngine
	logger *zap.Logger
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alerts service.AlertEngine, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger.Named("alerts"),
	}
}

// RegisterRoutes registers the alert routes on an authenticated owner router
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/scan", h.Scan)
		r.Post("/resolve-all", h.ResolveAll)
		r.Post("/{id}/resolve", h.Resolve)
	})
}

// Scan handles an on-demand alert scan of the caller's pharmacy
func (h *AlertHandler) Scan(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	created, err := h.alerts.Scan(r.Context(), actor, actor.PharmacyID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ScanResponse{Created: created})
}

// List handles alert listing, optionally filtered by ?resolved= and ?type=
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	q := newQueryParams(r)
	filter := repository.AlertFilter{Resolved: q.Bool("resolved")}
	if err := q.Err(); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if raw := q.String("type"); raw != "" {
		alertType, err := domain.ParseAlertType(raw)
		if err != nil {
			middleware.RespondWithDomainError(w, h.logger, err)
			return
		}
		filter.Type = &alertType
	}

	alerts, err := h.alerts.List(r.Context(), actor, actor.PharmacyID, filter)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if alerts == nil {
		alerts = []domain.AlertView{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, alerts)
}

// Resolve handles marking one alert handled
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	alert, err := h.alerts.Resolve(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, alert)
}

// ResolveAll handles resolving every open alert of the caller's pharmacy
func (h *AlertHandler) ResolveAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	resolved, err := h.alerts.ResolveAll(r.Context(), actor, actor.PharmacyID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ResolveAllResponse{Resolved: resolved})
}
