package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SortBy selects the ordering of search results
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDistance  SortBy = "distance"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
	SortName      SortBy = "name"
)

// DefaultSearchRadiusKm bounds geo searches when the caller gives no radius
const DefaultSearchRadiusKm = 50.0

// ParseSortBy validates a raw sort key; empty means relevance
func ParseSortBy(raw string) (SortBy, error) {
	switch s := SortBy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortDistance, SortPriceAsc, SortPriceDesc, SortName:
		return s, nil
	default:
		return "", NewValidationError("sort_by", "must be one of relevance, distance, price_asc, price_desc, name")
	}
}

// Origin is the caller's position for geo searches
type Origin struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// SearchFilters narrows the candidate offers
type SearchFilters struct {
	Query                string
	Category             string
	MinPrice             *decimal.Decimal
	MaxPrice             *decimal.Decimal
	RequiresPrescription *bool
	DrugForm             string
	Manufacturer         string
	VerifiedOnly         bool
}

// SearchRequest is a complete drug availability query
type SearchRequest struct {
	Filters       SearchFilters
	Origin        *Origin
	MaxDistanceKm float64
	SortBy        SortBy
	Grouped       bool
}

// Offer is a discoverable inventory record joined with its drug and pharmacy
type Offer struct {
	InventoryID          uuid.UUID       `db:"inventory_id"`
	DrugID               uuid.UUID       `db:"drug_id"`
	DrugName             string          `db:"drug_name"`
	GenericName          string          `db:"generic_name"`
	Manufacturer         string          `db:"manufacturer"`
	Dosage               string          `db:"dosage"`
	Form                 string          `db:"form"`
	RequiresPrescription bool            `db:"requires_prescription"`
	CategoryID           uuid.UUID       `db:"category_id"`
	CategoryName         string          `db:"category_name"`
	PharmacyID           uuid.UUID       `db:"pharmacy_id"`
	PharmacyName         string          `db:"pharmacy_name"`
	PharmacyAddress      string          `db:"pharmacy_address"`
	PharmacyVerified     bool            `db:"pharmacy_verified"`
	Latitude             *float64        `db:"latitude"`
	Longitude            *float64        `db:"longitude"`
	Price                decimal.Decimal `db:"price"`
	Quantity             int             `db:"quantity"`
	Status               InventoryStatus `db:"status"`
}

// Matches applies the discovery predicate: sellable status plus every field filter
func (f SearchFilters) Matches(o *Offer) bool {
	if !o.Status.Discoverable() {
		return false
	}
	if f.VerifiedOnly && !o.PharmacyVerified {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if !containsFold(o.DrugName, q) && !containsFold(o.GenericName, q) && !containsFold(o.Manufacturer, q) {
			return false
		}
	}
	if f.Category != "" {
		if id, err := uuid.Parse(f.Category); err == nil {
			if o.CategoryID != id {
				return false
			}
		} else if !strings.EqualFold(o.CategoryName, f.Category) {
			return false
		}
	}
	if f.MinPrice != nil && o.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && o.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.RequiresPrescription != nil && o.RequiresPrescription != *f.RequiresPrescription {
		return false
	}
	if f.DrugForm != "" && !containsFold(o.Form, f.DrugForm) {
		return false
	}
	if f.Manufacturer != "" && !containsFold(o.Manufacturer, f.Manufacturer) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SearchResult is one offer in a search response. DistanceKm is set only when
// the caller gave an origin and the pharmacy has coordinates.
type SearchResult struct {
	InventoryID      uuid.UUID       `json:"inventory_id"`
	PharmacyID       uuid.UUID       `json:"pharmacy_id"`
	PharmacyName     string          `json:"pharmacy_name"`
	PharmacyAddress  string          `json:"pharmacy_address"`
	PharmacyVerified bool            `json:"pharmacy_verified"`
	DrugID           uuid.UUID       `json:"drug_id"`
	DrugName         string          `json:"drug_name"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int             `json:"quantity"`
	Status           InventoryStatus `json:"status"`
	DistanceKm       *float64        `json:"distance_km,omitempty"`
}

// DrugInfo is the catalog part of a grouped result
type DrugInfo struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	GenericName          string    `json:"generic_name"`
	Manufacturer         string    `json:"manufacturer"`
	Dosage               string    `json:"dosage"`
	Form                 string    `json:"form"`
	Category             string    `json:"category"`
	RequiresPrescription bool      `json:"requires_prescription"`
}

// DrugOffers groups every offer of one drug
type DrugOffers struct {
	Drug   DrugInfo       `json:"drug_info"`
	Offers []SearchResult `json:"pharmacies"`
}

// SearchResponse carries flat or grouped results
type SearchResponse struct {
	Count      int            `json:"count"`
	DrugsFound int            `json:"drugs_found"`
	Results    []SearchResult `json:"results,omitempty"`
	Groups     []DrugOffers   `json:"groups,omitempty"`
	Truncated  bool           `json:"truncated"`
}

// SortResults orders results in place. Distance ordering applies only when an
// origin was supplied; results without a distance go last.
func SortResults(results []SearchResult, by SortBy, hasOrigin bool) {
	switch by {
	case SortPriceAsc:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Price.LessThan(results[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Price.GreaterThan(results[j].Price) })
	case SortName:
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].DrugName) < strings.ToLower(results[j].DrugName)
		})
	default:
		if !hasOrigin {
			return
		}
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].DistanceKm, results[j].DistanceKm
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a < *b
			}
		})
	}
}

// SearchHistory records one patient query
type SearchHistory struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Query      string    `json:"query" db:"query"`
	SearchedAt time.Time `json:"searched_at" db:"searched_at"`
}

// QueryCount is a search query with its frequency
type QueryCount struct {
	Query string `json:"query" db:"query"`
	Count int    `json:"count" db:"count"`
}

// PriceAnalysis summarizes the prices of a drug across pharmacies
type PriceAnalysis struct {
	DrugID        uuid.UUID       `json:"drug_id"`
	PharmacyCount int             `json:"pharmacies_count"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	MedianPrice   decimal.Decimal `json:"median_price"`
	PriceSpread   decimal.Decimal `json:"price_variance"`
	BelowAverage  int             `json:"below_average"`
	AboveAverage  int             `json:"above_average"`
}

// AnalyzePrices computes a price analysis. It returns false for an empty set.
func AnalyzePrices(drugID uuid.UUID, prices []decimal.Decimal) (*PriceAnalysis, bool) {
	if len(prices) == 0 {
		return nil, false
	}

	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	avg := decimal.Sum(sorted[0], sorted[1:]...).Div(decimal.NewFromInt(int64(len(sorted))))

	pa := &PriceAnalysis{
		DrugID:        drugID,
		PharmacyCount: len(sorted),
		MinPrice:      sorted[0],
		MaxPrice:      sorted[len(sorted)-1],
		AveragePrice:  avg.Round(2),
		MedianPrice:   sorted[len(sorted)/2],
		PriceSpread:   sorted[len(sorted)-1].Sub(sorted[0]),
	}
	for _, p := range sorted {
		switch {
		case p.LessThan(avg):
			pa.BelowAverage++
		case p.GreaterThan(avg):
			pa.AboveAverage++
		}
	}
	return pa, true
}
