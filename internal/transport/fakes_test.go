package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"
	"geopharm/internal/repository"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Hand-written fakes: each test sets only the funcs it exercises.

type fakeSearchEngine struct {
	search         func(ctx context.Context, actor domain.Actor, req domain.SearchRequest) (*domain.SearchResponse, error)
	suggest        func(ctx context.Context, query string) ([]string, error)
	priceAnalysis  func(ctx context.Context, drugID uuid.UUID) (*domain.PriceAnalysis, error)
	availability   func(ctx context.Context, drugID uuid.UUID) (*domain.DrugAvailability, error)
	nearby         func(ctx context.Context, origin domain.Origin, radiusKm float64, verifiedOnly bool) ([]domain.NearbyPharmacy, error)
	popularQueries func(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error)
}

var _ service.SearchEngine = (*fakeSearchEngine)(nil)

func (f *fakeSearchEngine) Search(ctx context.Context, actor domain.Actor, req domain.SearchRequest) (*domain.SearchResponse, error) {
	return f.search(ctx, actor, req)
}

func (f *fakeSearchEngine) Suggest(ctx context.Context, query string) ([]string, error) {
	return f.suggest(ctx, query)
}

func (f *fakeSearchEngine) PriceAnalysis(ctx context.Context, drugID uuid.UUID) (*domain.PriceAnalysis, error) {
	return f.priceAnalysis(ctx, drugID)
}

func (f *fakeSearchEngine) Availability(ctx context.Context, drugID uuid.UUID) (*domain.DrugAvailability, error) {
	return f.availability(ctx, drugID)
}

func (f *fakeSearchEngine) Nearby(ctx context.Context, origin domain.Origin, radiusKm float64, verifiedOnly bool) ([]domain.NearbyPharmacy, error) {
	return f.nearby(ctx, origin, radiusKm, verifiedOnly)
}

func (f *fakeSearchEngine) PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error) {
	return f.popularQueries(ctx, since, limit)
}

func (f *fakeSearchEngine) Wait() {}

type fakeInventoryService struct {
	create       func(ctx context.Context, actor domain.Actor, in service.CreateInventoryInput) (*domain.InventoryRecord, error)
	list         func(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) ([]domain.InventoryItem, error)
	setQuantity  func(ctx context.Context, actor domain.Actor, id uuid.UUID, quantity int) (*domain.InventoryRecord, error)
	adjustStock  func(ctx context.Context, actor domain.Actor, id uuid.UUID, delta int) (*domain.InventoryRecord, error)
	setThreshold func(ctx context.Context, actor domain.Actor, id uuid.UUID, threshold int) (*domain.InventoryRecord, error)
	byID         func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error)
}

var _ service.InventoryService = (*fakeInventoryService)(nil)

func (f *fakeInventoryService) Create(ctx context.Context, actor domain.Actor, in service.CreateInventoryInput) (*domain.InventoryRecord, error) {
	return f.create(ctx, actor, in)
}

func (f *fakeInventoryService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return f.byID(ctx, actor, id)
}

func (f *fakeInventoryService) List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) ([]domain.InventoryItem, error) {
	return f.list(ctx, actor, pharmacyID)
}

func (f *fakeInventoryService) SetQuantity(ctx context.Context, actor domain.Actor, id uuid.UUID, quantity int) (*domain.InventoryRecord, error) {
	return f.setQuantity(ctx, actor, id, quantity)
}

func (f *fakeInventoryService) AdjustStock(ctx context.Context, actor domain.Actor, id uuid.UUID, delta int) (*domain.InventoryRecord, error) {
	return f.adjustStock(ctx, actor, id, delta)
}

func (f *fakeInventoryService) SetThreshold(ctx context.Context, actor domain.Actor, id uuid.UUID, threshold int) (*domain.InventoryRecord, error) {
	return f.setThreshold(ctx, actor, id, threshold)
}

func (f *fakeInventoryService) Discontinue(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return f.byID(ctx, actor, id)
}

func (f *fakeInventoryService) Reinstate(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error) {
	return f.byID(ctx, actor, id)
}

type fakePriceLedger struct {
	changePrice func(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, newPrice decimal.Decimal, reason string) (*domain.PriceChange, error)
	bulkAdjust  func(ctx context.Context, actor domain.Actor, inventoryIDs []uuid.UUID, adj domain.PriceAdjustment, reason string) (int, error)
	priceTrend  func(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, limit int) ([]domain.PriceTrendEntry, error)
}

var _ service.PriceLedger = (*fakePriceLedger)(nil)

func (f *fakePriceLedger) ChangePrice(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, newPrice decimal.Decimal, reason string) (*domain.PriceChange, error) {
	return f.changePrice(ctx, actor, inventoryID, newPrice, reason)
}

func (f *fakePriceLedger) BulkAdjust(ctx context.Context, actor domain.Actor, inventoryIDs []uuid.UUID, adj domain.PriceAdjustment, reason string) (int, error) {
	return f.bulkAdjust(ctx, actor, inventoryIDs, adj, reason)
}

func (f *fakePriceLedger) PriceTrend(ctx context.Context, actor domain.Actor, inventoryID uuid.UUID, limit int) ([]domain.PriceTrendEntry, error) {
	return f.priceTrend(ctx, actor, inventoryID, limit)
}

type fakeAlertEngine struct {
	scan       func(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error)
	list       func(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID, filter repository.AlertFilter) ([]domain.AlertView, error)
	resolve    func(ctx context.Context, actor domain.Actor, alertID uuid.UUID) (*domain.AlertView, error)
	resolveAll func(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error)
}

var _ service.AlertEngine = (*fakeAlertEngine)(nil)

func (f *fakeAlertEngine) Scan(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error) {
	return f.scan(ctx, actor, pharmacyID)
}

func (f *fakeAlertEngine) List(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID, filter repository.AlertFilter) ([]domain.AlertView, error) {
	return f.list(ctx, actor, pharmacyID, filter)
}

func (f *fakeAlertEngine) Resolve(ctx context.Context, actor domain.Actor, alertID uuid.UUID) (*domain.AlertView, error) {
	return f.resolve(ctx, actor, alertID)
}

func (f *fakeAlertEngine) ResolveAll(ctx context.Context, actor domain.Actor, pharmacyID uuid.UUID) (int, error) {
	return f.resolveAll(ctx, actor, pharmacyID)
}

type fakePharmacyService struct {
	apply          func(ctx context.Context, actor domain.Actor, in service.ApplyInput) (*domain.Pharmacy, error)
	get            func(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error)
	updateLocation func(ctx context.Context, actor domain.Actor, lat, lng float64) (*domain.Pharmacy, error)
	review         func(ctx context.Context, actor domain.Actor, id uuid.UUID, decision domain.ReviewDecision, reason string) (*domain.Pharmacy, error)
	listByStatus   func(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus) ([]*domain.Pharmacy, error)
}

var _ service.PharmacyService = (*fakePharmacyService)(nil)

func (f *fakePharmacyService) Apply(ctx context.Context, actor domain.Actor, in service.ApplyInput) (*domain.Pharmacy, error) {
	return f.apply(ctx, actor, in)
}

func (f *fakePharmacyService) Get(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	return f.get(ctx, id)
}

func (f *fakePharmacyService) Mine(ctx context.Context, actor domain.Actor) (*domain.Pharmacy, error) {
	return f.get(ctx, actor.PharmacyID)
}

func (f *fakePharmacyService) UpdateLocation(ctx context.Context, actor domain.Actor, lat, lng float64) (*domain.Pharmacy, error) {
	return f.updateLocation(ctx, actor, lat, lng)
}

func (f *fakePharmacyService) Review(ctx context.Context, actor domain.Actor, id uuid.UUID, decision domain.ReviewDecision, reason string) (*domain.Pharmacy, error) {
	return f.review(ctx, actor, id, decision, reason)
}

func (f *fakePharmacyService) ListByStatus(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus) ([]*domain.Pharmacy, error) {
	return f.listByStatus(ctx, actor, status)
}

// asActor authenticates every request on the router as the given actor
func asActor(actor domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), actor)))
		})
	}
}

func passThrough(next http.Handler) http.Handler { return next }

func newOwner() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RolePharmacyOwner, PharmacyID: uuid.New()}
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func ownerRouter(actor domain.Actor, register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(asActor(actor))
	register(r)
	return r
}
