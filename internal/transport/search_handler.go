package transport

import (
	"net/http"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SuggestResponse lists drug names for type-ahead
type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// NearbyResponse lists pharmacies around an origin
type NearbyResponse struct {
	Origin     domain.Origin           `json:"origin"`
	Count      int                     `json:"count"`
	Pharmacies []domain.NearbyPharmacy `json:"pharmacies"`
}

// SearchHandler serves the patient-facing discovery endpoints
type SearchHandler struct {
	search service.SearchEngine
	logger *zap.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(search service.SearchEngine, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		search: search,
		logger: logger.Named("search"),
	}
}

// RegisterRoutes registers the public discovery routes. optionalAuth identifies
// patients without requiring a token; limit throttles the search surface.
func (h *SearchHandler) RegisterRoutes(r chi.Router, optionalAuth, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(limit)
		r.Get("/api/search", h.Search)
		r.Get("/api/drugs/suggest", h.Suggest)
	})

	r.Get("/api/drugs/{id}/price-analysis", h.PriceAnalysis)
	r.Get("/api/drugs/{id}/availability", h.Availability)
	r.Get("/api/pharmacies/nearby", h.Nearby)
}

// RegisterAdminRoutes registers search reporting for admins
func (h *SearchHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/search/popular", h.PopularQueries)
}

// Search handles drug availability search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	// anonymous callers search without history
	actor, _ := middleware.ActorFromContext(r.Context())

	resp, err := h.search.Search(r.Context(), actor, req)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

func parseSearchRequest(r *http.Request) (domain.SearchRequest, error) {
	q := newQueryParams(r)

	req := domain.SearchRequest{
		Filters: domain.SearchFilters{
			Query:                q.String("q"),
			Category:             q.String("category"),
			MinPrice:             q.Decimal("min_price"),
			MaxPrice:             q.Decimal("max_price"),
			RequiresPrescription: q.Bool("requires_prescription"),
			DrugForm:             q.String("drug_form"),
			Manufacturer:         q.String("manufacturer"),
		},
	}
	if verified := q.Bool("verified_only"); verified != nil {
		req.Filters.VerifiedOnly = *verified
	}
	if group := q.Bool("group"); group != nil {
		req.Grouped = *group
	}
	if maxDistance := q.Float("max_distance"); maxDistance != nil {
		req.MaxDistanceKm = *maxDistance
	}

	lat, lng := q.Float("lat"), q.Float("lng")
	if err := q.Err(); err != nil {
		return req, err
	}
	switch {
	case lat != nil && lng != nil:
		req.Origin = &domain.Origin{Latitude: *lat, Longitude: *lng}
	case lat != nil || lng != nil:
		return req, domain.NewValidationError("lat", "lat and lng must be given together")
	}
	if req.MaxDistanceKm != 0 && req.Origin == nil {
		return req, domain.NewValidationError("max_distance", "requires lat and lng")
	}

	sortBy, err := domain.ParseSortBy(q.String("sort_by"))
	if err != nil {
		return req, err
	}
	req.SortBy = sortBy

	return req, nil
}

// Suggest handles drug name suggestions
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := newQueryParams(r).String("q")

	suggestions, err := h.search.Suggest(r.Context(), query)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SuggestResponse{Query: query, Suggestions: suggestions})
}

// PriceAnalysis handles the cross-pharmacy price summary of a drug
func (h *SearchHandler) PriceAnalysis(w http.ResponseWriter, r *http.Request) {
	drugID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	analysis, err := h.search.PriceAnalysis(r.Context(), drugID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, analysis)
}

// Availability handles the availability classification of a drug
func (h *SearchHandler) Availability(w http.ResponseWriter, r *http.Request) {
	drugID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	availability, err := h.search.Availability(r.Context(), drugID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, availability)
}

// Nearby handles the pharmacies-around-me listing
func (h *SearchHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	lat, lng := q.Float("lat"), q.Float("lng")
	radius := q.Float("radius")
	verified := q.Bool("verified_only")
	if err := q.Err(); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if lat == nil || lng == nil {
		middleware.RespondWithDomainError(w, h.logger, domain.NewValidationError("lat", "lat and lng are required"))
		return
	}

	origin := domain.Origin{Latitude: *lat, Longitude: *lng}
	radiusKm := 0.0
	if radius != nil {
		radiusKm = *radius
	}

	pharmacies, err := h.search.Nearby(r.Context(), origin, radiusKm, verified != nil && *verified)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, NearbyResponse{
		Origin:     origin,
		Count:      len(pharmacies),
		Pharmacies: pharmacies,
	})
}

// PopularQueries handles the most frequent patient searches over the last days
func (h *SearchHandler) PopularQueries(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	days := q.Int("days", 7)
	limit := q.Int("limit", 0)
	if err := q.Err(); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if days <= 0 {
		middleware.RespondWithDomainError(w, h.logger, domain.NewValidationError("days", "must be positive"))
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	queries, err := h.search.PopularQueries(r.Context(), since, limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, queries)
}
