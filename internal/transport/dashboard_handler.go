package transport

import (
	"net/http"

	"geopharm/internal/middleware"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DashboardHandler serves the owner's read-only rollups
type DashboardHandler struct {
	dashboards service.DashboardService
	logger     *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboards service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboards: dashboards,
		logger:     logger.Named("dashboard"),
	}
}

// RegisterRoutes registers the dashboard routes on an authenticated owner router
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/dashboard", h.Dashboard)
	r.Get("/api/dashboard/expiry-report", h.ExpiryReport)
}

// Dashboard handles the pharmacy overview
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.dashboards.Dashboard(r.Context(), actor, actor.PharmacyID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, d)
}

// ExpiryReport handles the expiry buckets
func (h *DashboardHandler) ExpiryReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.dashboards.ExpiryReport(r.Context(), actor, actor.PharmacyID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}
