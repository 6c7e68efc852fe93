package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"geopharm/internal/config"
	"geopharm/internal/domain"
	"geopharm/internal/geo"
	"geopharm/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// MinSuggestionQueryLength is the shortest prefix that yields suggestions
	MinSuggestionQueryLength = 2
	DefaultSuggestionLimit   = 5
	DefaultPopularLimit      = 10

	maxHistoryQueryLength = 200
	historyWriteTimeout   = 5 * time.Second
)

// SearchEngine answers patient-facing discovery queries
type SearchEngine interface {
	Search(ctx context.Context, actor domain.Actor, req domain.SearchRequest) (*domain.SearchResponse, error)
	Suggest(ctx context.Context, query string) ([]string, error)
	PriceAnalysis(ctx context.Context, drugID uuid.UUID) (*domain.PriceAnalysis, error)
	Availability(ctx context.Context, drugID uuid.UUID) (*domain.DrugAvailability, error)
	Nearby(ctx context.Context, origin domain.Origin, radiusKm float64, verifiedOnly bool) ([]domain.NearbyPharmacy, error)
	PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error)
	// Wait blocks until pending search history writes have finished
	Wait()
}

type searchEngine struct {
	inventory  repository.InventoryRepository
	pharmacies repository.PharmacyRepository
	drugs      repository.DrugRepository
	history    repository.SearchHistoryRepository
	cfg        config.SearchConfig
	logger     *zap.Logger
	now        func() time.Time
	pending    sync.WaitGroup
}

// NewSearchEngine creates a new instance of SearchEngine
func NewSearchEngine(
	inventory repository.InventoryRepository,
	pharmacies repository.PharmacyRepository,
	drugs repository.DrugRepository,
	history repository.SearchHistoryRepository,
	cfg config.SearchConfig,
	logger *zap.Logger,
	opts ...Option,
) SearchEngine {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = domain.DefaultSearchRadiusKm
	}
	o := buildOptions(opts)
	return &searchEngine{
		inventory:  inventory,
		pharmacies: pharmacies,
		drugs:      drugs,
		history:    history,
		cfg:        cfg,
		logger:     logger.Named("search"),
		now:        o.now,
	}
}

// Search returns every discoverable offer matching the filters. With an
// origin, offers beyond the radius and pharmacies without coordinates are
// excluded. Results past MaxResults are dropped and flagged as truncated.
func (s *searchEngine) Search(ctx context.Context, actor domain.Actor, req domain.SearchRequest) (*domain.SearchResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	if actor.IsPatient() {
		s.recordHistory(ctx, actor.UserID, req.Filters.Query)
	}

	q := repository.CandidateQuery{Filters: req.Filters, Origin: req.Origin, SortBy: req.SortBy}
	if req.Origin != nil {
		box := geo.Bounds(*req.Origin, req.MaxDistanceKm)
		q.Bounds = &box
	}
	if s.cfg.MaxResults > 0 {
		q.Limit = s.cfg.MaxResults + 1
	}

	offers, err := s.inventory.SearchCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	truncated := false
	if s.cfg.MaxResults > 0 && len(offers) > s.cfg.MaxResults {
		offers = offers[:s.cfg.MaxResults]
		truncated = true
	}

	results := make([]domain.SearchResult, 0, len(offers))
	byDrug := make(map[uuid.UUID]*domain.Offer)
	for i := range offers {
		o := &offers[i]
		if !req.Filters.Matches(o) {
			continue
		}

		res := domain.SearchResult{
			InventoryID:      o.InventoryID,
			PharmacyID:       o.PharmacyID,
			PharmacyName:     o.PharmacyName,
			PharmacyAddress:  o.PharmacyAddress,
			PharmacyVerified: o.PharmacyVerified,
			DrugID:           o.DrugID,
			DrugName:         o.DrugName,
			Price:            o.Price,
			Quantity:         o.Quantity,
			Status:           o.Status,
		}
		if req.Origin != nil {
			d := geo.DistanceToPharmacy(*req.Origin, o.Latitude, o.Longitude)
			if d == nil || *d > req.MaxDistanceKm {
				continue
			}
			res.DistanceKm = d
		}

		results = append(results, res)
		if _, ok := byDrug[o.DrugID]; !ok {
			byDrug[o.DrugID] = o
		}
	}

	domain.SortResults(results, req.SortBy, req.Origin != nil)

	resp := &domain.SearchResponse{
		Count:      len(results),
		DrugsFound: len(byDrug),
		Truncated:  truncated,
	}
	if req.Grouped {
		resp.Groups = groupByDrug(results, byDrug)
	} else {
		resp.Results = results
	}
	return resp, nil
}

func (s *searchEngine) validate(req *domain.SearchRequest) error {
	f := req.Filters
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return domain.NewValidationError("min_price", "cannot be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return domain.NewValidationError("max_price", "cannot be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return domain.NewValidationError("min_price", "cannot exceed max_price")
	}
	if req.SortBy == "" {
		req.SortBy = domain.SortRelevance
	}

	if req.Origin == nil {
		if req.MaxDistanceKm != 0 {
			return domain.NewValidationError("max_distance", "requires an origin")
		}
		return nil
	}
	if err := geo.ValidateCoordinates(req.Origin.Latitude, req.Origin.Longitude); err != nil {
		return err
	}
	switch {
	case math.IsNaN(req.MaxDistanceKm) || math.IsInf(req.MaxDistanceKm, 0):
		return domain.NewValidationError("max_distance", "must be a finite number")
	case req.MaxDistanceKm < 0:
		return domain.NewValidationError("max_distance", "cannot be negative")
	case req.MaxDistanceKm == 0:
		req.MaxDistanceKm = s.cfg.DefaultRadiusKm
	}
	return nil
}

// groupByDrug keeps the result order: groups appear in order of their first
// offer, and offers keep their sorted order within a group.
func groupByDrug(results []domain.SearchResult, drugs map[uuid.UUID]*domain.Offer) []domain.DrugOffers {
	groups := []domain.DrugOffers{}
	index := make(map[uuid.UUID]int)
	for _, r := range results {
		i, ok := index[r.DrugID]
		if !ok {
			o := drugs[r.DrugID]
			i = len(groups)
			index[r.DrugID] = i
			groups = append(groups, domain.DrugOffers{
				Drug: domain.DrugInfo{
					ID:                   o.DrugID,
					Name:                 o.DrugName,
					GenericName:          o.GenericName,
					Manufacturer:         o.Manufacturer,
					Dosage:               o.Dosage,
					Form:                 o.Form,
					Category:             o.CategoryName,
					RequiresPrescription: o.RequiresPrescription,
				},
			})
		}
		groups[i].Offers = append(groups[i].Offers, r)
	}
	return groups
}

// recordHistory appends the query in the background. It outlives the request
// context and never fails the search.
func (s *searchEngine) recordHistory(ctx context.Context, userID uuid.UUID, query string) {
	if utf8.RuneCountInString(query) > maxHistoryQueryLength {
		query = string([]rune(query)[:maxHistoryQueryLength])
	}
	entry := &domain.SearchHistory{
		ID:         uuid.New(),
		UserID:     userID,
		Query:      query,
		SearchedAt: s.now(),
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
		defer cancel()

		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Warn("Failed to record search history", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}()
}

func (s *searchEngine) Wait() {
	s.pending.Wait()
}

// Suggest returns up to five drug names matching the prefix
func (s *searchEngine) Suggest(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSuggestionQueryLength {
		return []string{}, nil
	}
	return s.drugs.Suggest(ctx, query, DefaultSuggestionLimit)
}

// PriceAnalysis summarizes the prices of a drug across every pharmacy selling it
func (s *searchEngine) PriceAnalysis(ctx context.Context, drugID uuid.UUID) (*domain.PriceAnalysis, error) {
	if _, err := s.drugs.FindByID(ctx, drugID); err != nil {
		return nil, err
	}

	offers, err := s.inventory.ListOffersByDrug(ctx, drugID)
	if err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, 0, len(offers))
	for i := range offers {
		if offers[i].Status.Discoverable() {
			prices = append(prices, offers[i].Price)
		}
	}

	pa, ok := domain.AnalyzePrices(drugID, prices)
	if !ok {
		return nil, ErrNoPriceData
	}
	return pa, nil
}

// Availability classifies how widely a drug is stocked
func (s *searchEngine) Availability(ctx context.Context, drugID uuid.UUID) (*domain.DrugAvailability, error) {
	if _, err := s.drugs.FindByID(ctx, drugID); err != nil {
		return nil, err
	}

	statuses, err := s.inventory.ListStatusesByDrug(ctx, drugID)
	if err != nil {
		return nil, err
	}

	selling := 0
	for _, st := range statuses {
		if st.Discoverable() {
			selling++
		}
	}
	return &domain.DrugAvailability{
		DrugID:             drugID,
		Status:             domain.DeriveAvailability(statuses),
		StockingPharmacies: len(statuses),
		SellingPharmacies:  selling,
	}, nil
}

// Nearby returns pharmacies within the radius, nearest first
func (s *searchEngine) Nearby(ctx context.Context, origin domain.Origin, radiusKm float64, verifiedOnly bool) ([]domain.NearbyPharmacy, error) {
	if err := geo.ValidateCoordinates(origin.Latitude, origin.Longitude); err != nil {
		return nil, err
	}
	switch {
	case radiusKm < 0:
		return nil, domain.NewValidationError("radius", "cannot be negative")
	case radiusKm == 0:
		radiusKm = s.cfg.DefaultRadiusKm
	}

	pharmacies, err := s.pharmacies.ListWithCoordinates(ctx, verifiedOnly)
	if err != nil {
		return nil, err
	}

	nearby := []domain.NearbyPharmacy{}
	for _, p := range pharmacies {
		d := geo.DistanceToPharmacy(origin, p.Latitude, p.Longitude)
		if d == nil || *d > radiusKm {
			continue
		}
		nearby = append(nearby, domain.NearbyPharmacy{Pharmacy: p, DistanceKm: *d})
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby, nil
}

// PopularQueries returns the most frequent patient queries since the given time
func (s *searchEngine) PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	return s.history.PopularQueries(ctx, since, limit)
}
