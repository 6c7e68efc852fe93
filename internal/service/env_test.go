package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"geopharm/internal/config"
	"geopharm/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store    *mockStore
	clock    *testClock
	notifier *recordingNotifier

	drugRepo     *mockDrugRepository
	pharmacyRepo *mockPharmacyRepository
	invRepo      *mockInventoryRepository
	alertRepo    *mockAlertRepository

	inventory  InventoryService
	prices     PriceLedger
	alerts     AlertEngine
	search     SearchEngine
	dashboards DashboardService
	pharmacies PharmacyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSearch(t, config.SearchConfig{DefaultRadiusKm: 50, MaxResults: 500})
}

func newTestEnvWithSearch(t *testing.T, searchCfg config.SearchConfig) *testEnv {
	t.Helper()

	store := newMockStore()
	env := &testEnv{
		store:        store,
		clock:        &testClock{now: testNow},
		notifier:     &recordingNotifier{},
		drugRepo:     &mockDrugRepository{s: store},
		pharmacyRepo: &mockPharmacyRepository{s: store},
		invRepo:      &mockInventoryRepository{s: store},
		alertRepo:    &mockAlertRepository{s: store},
	}
	clock := WithClock(env.clock.Now)
	logger := zap.NewNop()

	changes := &mockPriceChangeRepository{s: store}
	history := &mockSearchHistoryRepository{s: store}

	env.inventory = NewInventoryService(env.invRepo, env.drugRepo, logger, clock)
	env.prices = NewPriceLedger(env.invRepo, changes, env.notifier, logger, clock)
	env.alerts = NewAlertEngine(env.invRepo, env.alertRepo, env.notifier, 30, logger, clock)
	env.search = NewSearchEngine(env.invRepo, env.pharmacyRepo, env.drugRepo, history, searchCfg, logger, clock)
	env.dashboards = NewDashboardService(&mockDashboardRepository{s: store}, env.invRepo, 30, logger, clock)
	env.pharmacies = NewPharmacyService(env.pharmacyRepo, env.notifier, logger, clock)
	return env
}

func (e *testEnv) addDrug(t *testing.T, name, generic, category string) *domain.Drug {
	t.Helper()
	ctx := context.Background()

	var categoryID uuid.UUID
	e.store.mu.Lock()
	for _, c := range e.store.categories {
		if c.Name == category {
			categoryID = c.ID
		}
	}
	e.store.mu.Unlock()
	if categoryID == uuid.Nil {
		c := &domain.DrugCategory{ID: uuid.New(), Name: category, CreatedAt: testNow}
		if err := e.drugRepo.CreateCategory(ctx, c); err != nil {
			t.Fatalf("Failed to create category: %v", err)
		}
		categoryID = c.ID
	}

	d := &domain.Drug{
		ID:           uuid.New(),
		Name:         name,
		GenericName:  generic,
		CategoryID:   categoryID,
		Manufacturer: "Acme Pharma",
		Dosage:       "500mg",
		Form:         "tablet",
		CreatedAt:    testNow,
	}
	if err := e.drugRepo.Create(ctx, d); err != nil {
		t.Fatalf("Failed to create drug: %v", err)
	}
	return d
}

// addPharmacy registers an approved pharmacy and returns it with its owner
func (e *testEnv) addPharmacy(t *testing.T, name string, lat, lng *float64) (*domain.Pharmacy, domain.Actor) {
	t.Helper()
	p := &domain.Pharmacy{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		Name:              name,
		Address:           name + " street 1",
		City:              "Springfield",
		Latitude:          lat,
		Longitude:         lng,
		Verified:          true,
		ApplicationStatus: domain.ApplicationApproved,
		CreatedAt:         testNow,
		UpdatedAt:         testNow,
	}
	if err := e.pharmacyRepo.Create(context.Background(), p); err != nil {
		t.Fatalf("Failed to create pharmacy: %v", err)
	}
	return p, domain.Actor{UserID: p.OwnerID, Role: domain.RolePharmacyOwner, PharmacyID: p.ID}
}

func (e *testEnv) stock(t *testing.T, owner domain.Actor, drugID uuid.UUID, quantity int, price string) *domain.InventoryRecord {
	t.Helper()
	return e.stockWith(t, owner, CreateInventoryInput{DrugID: drugID, Quantity: quantity, Price: dec(price)})
}

func (e *testEnv) stockWith(t *testing.T, owner domain.Actor, in CreateInventoryInput) *domain.InventoryRecord {
	t.Helper()
	rec, err := e.inventory.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Failed to stock drug: %v", err)
	}
	return rec
}

func (e *testEnv) storedRecord(t *testing.T, id uuid.UUID) *domain.InventoryRecord {
	t.Helper()
	rec, err := e.invRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load record: %v", err)
	}
	return rec
}

func patient() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RolePatient}
}

func admin() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}
