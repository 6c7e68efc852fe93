package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/geo"
	"geopharm/internal/notify"
	"geopharm/internal/repository"

	"github.com/google/uuid"
)

// mockStore backs every mock repository so joins behave like the database
type mockStore struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*domain.DrugCategory
	drugs      map[uuid.UUID]*domain.Drug
	pharmacies map[uuid.UUID]*domain.Pharmacy
	inventory  map[uuid.UUID]*domain.InventoryRecord
	alerts     map[uuid.UUID]*domain.Alert
	changes    []domain.PriceChange
	history    []domain.SearchHistory
	historyErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		categories: make(map[uuid.UUID]*domain.DrugCategory),
		drugs:      make(map[uuid.UUID]*domain.Drug),
		pharmacies: make(map[uuid.UUID]*domain.Pharmacy),
		inventory:  make(map[uuid.UUID]*domain.InventoryRecord),
		alerts:     make(map[uuid.UUID]*domain.Alert),
	}
}

func (s *mockStore) categoryName(drugID uuid.UUID) string {
	d := s.drugs[drugID]
	if d == nil {
		return ""
	}
	if c := s.categories[d.CategoryID]; c != nil {
		return c.Name
	}
	return ""
}

func (s *mockStore) drugName(drugID uuid.UUID) string {
	if d := s.drugs[drugID]; d != nil {
		return d.Name
	}
	return ""
}

func (s *mockStore) offer(rec *domain.InventoryRecord) domain.Offer {
	d := s.drugs[rec.DrugID]
	p := s.pharmacies[rec.PharmacyID]
	return domain.Offer{
		InventoryID:          rec.ID,
		DrugID:               d.ID,
		DrugName:             d.Name,
		GenericName:          d.GenericName,
		Manufacturer:         d.Manufacturer,
		Dosage:               d.Dosage,
		Form:                 d.Form,
		RequiresPrescription: d.RequiresPrescription,
		CategoryID:           d.CategoryID,
		CategoryName:         s.categoryName(d.ID),
		PharmacyID:           p.ID,
		PharmacyName:         p.Name,
		PharmacyAddress:      p.Address,
		PharmacyVerified:     p.Verified,
		Latitude:             p.Latitude,
		Longitude:            p.Longitude,
		Price:                rec.Price,
		Quantity:             rec.Quantity,
		Status:               rec.Status,
	}
}

func (s *mockStore) items(pharmacyID uuid.UUID) []domain.InventoryItem {
	items := []domain.InventoryItem{}
	for _, rec := range s.inventory {
		if rec.PharmacyID == pharmacyID {
			items = append(items, domain.InventoryItem{
				InventoryRecord: *rec,
				DrugName:        s.drugName(rec.DrugID),
				CategoryName:    s.categoryName(rec.DrugID),
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DrugName < items[j].DrugName })
	return items
}

func (s *mockStore) alertView(a *domain.Alert) domain.AlertView {
	rec := s.inventory[a.InventoryID]
	return domain.AlertView{Alert: *a, PharmacyID: rec.PharmacyID, DrugName: s.drugName(rec.DrugID)}
}

// Drugs

type mockDrugRepository struct{ s *mockStore }

func (m *mockDrugRepository) Create(ctx context.Context, drug *domain.Drug) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d := *drug
	m.s.drugs[d.ID] = &d
	return nil
}

func (m *mockDrugRepository) CreateCategory(ctx context.Context, category *domain.DrugCategory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return repository.ErrCategoryAlreadyExists
		}
	}
	c := *category
	m.s.categories[c.ID] = &c
	return nil
}

func (m *mockDrugRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Drug, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.drugs[id]
	if !ok {
		return nil, repository.ErrDrugNotFound
	}
	out := *d
	return &out, nil
}

func (m *mockDrugRepository) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	seen := map[string]bool{}
	names := []string{}
	q := strings.ToLower(query)
	for _, d := range m.s.drugs {
		if (strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.GenericName), q)) && !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// Pharmacies

type mockPharmacyRepository struct{ s *mockStore }

func (m *mockPharmacyRepository) Create(ctx context.Context, pharmacy *domain.Pharmacy) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.pharmacies {
		if p.OwnerID == pharmacy.OwnerID {
			return repository.ErrPharmacyAlreadyExists
		}
	}
	p := *pharmacy
	m.s.pharmacies[p.ID] = &p
	return nil
}

func (m *mockPharmacyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.pharmacies[id]
	if !ok {
		return nil, repository.ErrPharmacyNotFound
	}
	out := *p
	return &out, nil
}

func (m *mockPharmacyRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Pharmacy, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.pharmacies {
		if p.OwnerID == ownerID {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrPharmacyNotFound
}

func (m *mockPharmacyRepository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.pharmacies[id]
	if !ok {
		return repository.ErrPharmacyNotFound
	}
	p.Latitude, p.Longitude, p.UpdatedAt = &lat, &lng, at
	return nil
}

func (m *mockPharmacyRepository) UpdateApplication(ctx context.Context, pharmacy *domain.Pharmacy) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.pharmacies[pharmacy.ID]
	if !ok {
		return repository.ErrPharmacyNotFound
	}
	p.Verified = pharmacy.Verified
	p.ApplicationStatus = pharmacy.ApplicationStatus
	p.RejectionReason = pharmacy.RejectionReason
	p.UpdatedAt = pharmacy.UpdatedAt
	return nil
}

func (m *mockPharmacyRepository) ListByApplicationStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Pharmacy, error) {
	return m.list(func(p *domain.Pharmacy) bool { return p.ApplicationStatus == status }), nil
}

func (m *mockPharmacyRepository) ListWithCoordinates(ctx context.Context, verifiedOnly bool) ([]*domain.Pharmacy, error) {
	return m.list(func(p *domain.Pharmacy) bool { return p.HasCoordinates() && (p.Verified || !verifiedOnly) }), nil
}

func (m *mockPharmacyRepository) ListApproved(ctx context.Context) ([]*domain.Pharmacy, error) {
	return m.list(func(p *domain.Pharmacy) bool { return p.ApplicationStatus == domain.ApplicationApproved }), nil
}

func (m *mockPharmacyRepository) list(keep func(*domain.Pharmacy) bool) []*domain.Pharmacy {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*domain.Pharmacy{}
	for _, p := range m.s.pharmacies {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Inventory

type mockInventoryRepository struct {
	s *mockStore
	// afterFindByIDs runs once the lookup has released the store
	afterFindByIDs func(recs []*domain.InventoryRecord)
}

func (m *mockInventoryRepository) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.inventory {
		if r.PharmacyID == rec.PharmacyID && r.DrugID == rec.DrugID {
			return repository.ErrInventoryAlreadyExists
		}
	}
	r := *rec
	m.s.inventory[r.ID] = &r
	return nil
}

// Mutate mirrors the database: the store lock stands in for the row lock,
// and price is never written back
func (m *mockInventoryRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(rec *domain.InventoryRecord) error) (*domain.InventoryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.inventory[id]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	rec := *stored
	if err := fn(&rec); err != nil {
		return nil, err
	}
	pharmacyID, price, lastUpdated := stored.PharmacyID, stored.Price, stored.LastUpdated
	*stored = rec
	stored.PharmacyID = pharmacyID
	stored.Price = price
	if lastUpdated.After(rec.LastUpdated) {
		stored.LastUpdated = lastUpdated
	}
	out := *stored
	return &out, nil
}

func (m *mockInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.InventoryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.inventory[id]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	out := *rec
	return &out, nil
}

func (m *mockInventoryRepository) FindByIDs(ctx context.Context, pharmacyID uuid.UUID, ids []uuid.UUID) ([]*domain.InventoryRecord, error) {
	m.s.mu.Lock()
	out := []*domain.InventoryRecord{}
	for _, id := range ids {
		if rec, ok := m.s.inventory[id]; ok && rec.PharmacyID == pharmacyID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	m.s.mu.Unlock()

	if m.afterFindByIDs != nil {
		m.afterFindByIDs(out)
	}
	return out, nil
}

func (m *mockInventoryRepository) ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID) ([]domain.InventoryItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.items(pharmacyID), nil
}

// SearchCandidates ignores Bounds; the engine re-checks exact distances
func (m *mockInventoryRepository) SearchCandidates(ctx context.Context, q repository.CandidateQuery) ([]domain.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	offers := []domain.Offer{}
	for _, rec := range m.s.inventory {
		o := m.s.offer(rec)
		if q.Filters.Matches(&o) {
			offers = append(offers, o)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		switch q.SortBy {
		case domain.SortPriceAsc, domain.SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price) == (q.SortBy == domain.SortPriceAsc)
			}
		case domain.SortName:
		default:
			if q.Origin != nil {
				da, db := geo.DistanceToPharmacy(*q.Origin, a.Latitude, a.Longitude), geo.DistanceToPharmacy(*q.Origin, b.Latitude, b.Longitude)
				switch {
				case da != nil && db == nil:
					return true
				case da == nil && db != nil:
					return false
				case da != nil && db != nil && *da != *db:
					return *da < *db
				}
			}
		}
		if a.DrugName != b.DrugName {
			return a.DrugName < b.DrugName
		}
		if !a.Price.Equal(b.Price) {
			return a.Price.LessThan(b.Price)
		}
		return a.InventoryID.String() < b.InventoryID.String()
	})
	if q.Limit > 0 && len(offers) > q.Limit {
		offers = offers[:q.Limit]
	}
	return offers, nil
}

func (m *mockInventoryRepository) ListOffersByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	offers := []domain.Offer{}
	for _, rec := range m.s.inventory {
		if rec.DrugID == drugID && rec.Status.Discoverable() {
			offers = append(offers, m.s.offer(rec))
		}
	}
	return offers, nil
}

func (m *mockInventoryRepository) ListStatusesByDrug(ctx context.Context, drugID uuid.UUID) ([]domain.InventoryStatus, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	statuses := []domain.InventoryStatus{}
	for _, rec := range m.s.inventory {
		if rec.DrugID == drugID {
			statuses = append(statuses, rec.Status)
		}
	}
	return statuses, nil
}

// Price changes

type mockPriceChangeRepository struct{ s *mockStore }

func (m *mockPriceChangeRepository) Apply(ctx context.Context, p repository.PriceChangeParams) (*domain.PriceChange, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.inventory[p.InventoryID]
	if !ok || rec.PharmacyID != p.PharmacyID {
		return nil, repository.ErrInventoryNotFound
	}
	change := domain.PriceChange{
		ID:          uuid.New(),
		InventoryID: p.InventoryID,
		OldPrice:    rec.Price,
		NewPrice:    p.NewPrice,
		ChangedBy:   p.ChangedBy,
		Reason:      p.Reason,
		ChangedAt:   p.ChangedAt,
	}
	if p.Adjustment != nil {
		change.NewPrice = p.Adjustment.Apply(rec.Price)
	}
	rec.Price = change.NewPrice
	if p.ChangedAt.After(rec.LastUpdated) {
		rec.LastUpdated = p.ChangedAt
	}
	m.s.changes = append(m.s.changes, change)
	return &change, nil
}

func (m *mockPriceChangeRepository) ListByInventory(ctx context.Context, inventoryID uuid.UUID, limit int) ([]domain.PriceChange, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []domain.PriceChange{}
	for i := len(m.s.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if m.s.changes[i].InventoryID == inventoryID {
			out = append(out, m.s.changes[i])
		}
	}
	return out, nil
}

func (m *mockPriceChangeRepository) ListRecentByPharmacy(ctx context.Context, pharmacyID uuid.UUID, limit int) ([]domain.PriceChangeView, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.recentChanges(pharmacyID, limit), nil
}

func (s *mockStore) recentChanges(pharmacyID uuid.UUID, limit int) []domain.PriceChangeView {
	out := []domain.PriceChangeView{}
	for i := len(s.changes) - 1; i >= 0 && len(out) < limit; i-- {
		c := s.changes[i]
		if rec := s.inventory[c.InventoryID]; rec != nil && rec.PharmacyID == pharmacyID {
			out = append(out, domain.PriceChangeView{PriceChange: c, DrugName: s.drugName(rec.DrugID)})
		}
	}
	return out
}

// Alerts

type mockAlertRepository struct {
	s         *mockStore
	createErr error
}

func (m *mockAlertRepository) CreateIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, a := range m.s.alerts {
		if a.InventoryID == alert.InventoryID && a.AlertType == alert.AlertType && !a.IsResolved {
			return false, nil
		}
	}
	a := *alert
	m.s.alerts[a.ID] = &a
	return true, nil
}

func (m *mockAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AlertView, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.alerts[id]
	if !ok {
		return nil, repository.ErrAlertNotFound
	}
	view := m.s.alertView(a)
	return &view, nil
}

func (m *mockAlertRepository) ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID, filter repository.AlertFilter) ([]domain.AlertView, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []domain.AlertView{}
	for _, a := range m.s.alerts {
		view := m.s.alertView(a)
		if view.PharmacyID != pharmacyID {
			continue
		}
		if filter.Resolved != nil && a.IsResolved != *filter.Resolved {
			continue
		}
		if filter.Type != nil && a.AlertType != *filter.Type {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

func (m *mockAlertRepository) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.alerts[id]
	if !ok {
		return repository.ErrAlertNotFound
	}
	if !a.IsResolved {
		a.Resolve(at)
	}
	return nil
}

func (m *mockAlertRepository) ResolveAllByPharmacy(ctx context.Context, pharmacyID uuid.UUID, at time.Time) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, a := range m.s.alerts {
		if !a.IsResolved && m.s.inventory[a.InventoryID].PharmacyID == pharmacyID {
			a.Resolve(at)
			n++
		}
	}
	return n, nil
}

func (s *mockStore) unresolvedAlerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Alert{}
	for _, a := range s.alerts {
		if !a.IsResolved {
			out = append(out, *a)
		}
	}
	return out
}

// Search history

type mockSearchHistoryRepository struct{ s *mockStore }

func (m *mockSearchHistoryRepository) Create(ctx context.Context, entry *domain.SearchHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.historyErr != nil {
		return m.s.historyErr
	}
	m.s.history = append(m.s.history, *entry)
	return nil
}

func (m *mockSearchHistoryRepository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []domain.SearchHistory{}
	for i := len(m.s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.s.history[i].UserID == userID {
			out = append(out, m.s.history[i])
		}
	}
	return out, nil
}

func (m *mockSearchHistoryRepository) PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := map[string]int{}
	for _, h := range m.s.history {
		if h.Query != "" && !h.SearchedAt.Before(since) {
			counts[strings.ToLower(h.Query)]++
		}
	}
	out := []domain.QueryCount{}
	for q, n := range counts {
		out = append(out, domain.QueryCount{Query: q, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Dashboard

type mockDashboardRepository struct{ s *mockStore }

func (m *mockDashboardRepository) LoadSnapshot(ctx context.Context, pharmacyID uuid.UUID, recentChanges int) (*domain.PharmacySnapshot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	snap := &domain.PharmacySnapshot{
		PharmacyID:         pharmacyID,
		Items:              m.s.items(pharmacyID),
		RecentPriceChanges: m.s.recentChanges(pharmacyID, recentChanges),
	}
	for _, a := range m.s.alerts {
		if !a.IsResolved && m.s.inventory[a.InventoryID].PharmacyID == pharmacyID {
			snap.UnresolvedAlerts = append(snap.UnresolvedAlerts, *a)
		}
	}
	return snap, nil
}

// Notifier

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) ofType(t notify.EventType) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []notify.Event{}
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var errBrokerDown = errors.New("broker unavailable")
