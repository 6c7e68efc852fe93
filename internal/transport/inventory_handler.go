package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"
	"geopharm/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// CreateInventoryRequest represents a new stock record
type CreateInventoryRequest struct {
	DrugID            string           `json:"drug_id" validate:"required,uuid"`
	Quantity          int              `json:"quantity" validate:"gte=0"`
	Price             *decimal.Decimal `json:"price"`
	CostPrice         *decimal.Decimal `json:"cost_price"`
	LowStockThreshold *int             `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	ExpiryDate        string           `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	BatchNumber       string           `json:"batch_number" validate:"max=100"`
	Supplier          string           `json:"supplier" validate:"max=255"`
	Notes             string           `json:"notes" validate:"max=2000"`
}

// StockRequest sets the quantity outright or adjusts it by a delta; exactly one is given
type StockRequest struct {
	Quantity *int `json:"quantity" validate:"omitempty,gte=0"`
	Delta    *int `json:"delta"`
}

// ThresholdRequest represents a low-stock threshold update
type ThresholdRequest struct {
	LowStockThreshold *int `json:"low_stock_threshold" validate:"required,gte=0"`
}

// PriceRequest represents a single price change
type PriceRequest struct {
	Price  *decimal.Decimal `json:"price"`
	Reason string           `json:"reason" validate:"max=500"`
}

// BulkPriceRequest represents a bulk price adjustment
type BulkPriceRequest struct {
	InventoryIDs []string        `json:"inventory_ids" validate:"required,min=1,max=1000,dive,uuid"`
	UpdateType   string          `json:"update_type" validate:"omitempty,oneof=percentage fixed"`
	Adjustment   decimal.Decimal `json:"adjustment"`
	Reason       string          `json:"reason" validate:"max=500"`
}

// BulkPriceResponse reports a bulk adjustment
type BulkPriceResponse struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// InventoryHandler handles HTTP requests for an owner's stock and prices
type InventoryHandler struct {
	inventory service.InventoryService
	prices    service.PriceLedger
	logger    *zap.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventory service.InventoryService, prices service.PriceLedger, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		prices:    prices,
		logger:    logger.Named("inventory"),
	}
}

// RegisterRoutes registers the inventory routes on an authenticated owner router
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/bulk-price", h.BulkPrice)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/stock", h.UpdateStock)
			r.Patch("/threshold", h.UpdateThreshold)
			r.Post("/discontinue", h.Discontinue)
			r.Post("/reinstate", h.Reinstate)
			r.Put("/price", h.ChangePrice)
			r.Get("/price-history", h.PriceHistory)
		})
	})
}

// List handles the caller's stock listing
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var status domain.InventoryStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseInventoryStatus(raw)
		if err != nil {
			middleware.RespondWithDomainError(w, h.logger, err)
			return
		}
		status = parsed
	}

	items, err := h.inventory.List(r.Context(), actor, actor.PharmacyID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	filtered := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if status == "" || item.Status == status {
			filtered = append(filtered, item)
		}
	}
	items = filtered

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

// Create handles stocking a drug
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateInventoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	if req.Price == nil {
		middleware.RespondWithDomainError(w, h.logger, domain.NewValidationError("price", "is required"))
		return
	}

	in := service.CreateInventoryInput{
		DrugID:            uuid.MustParse(req.DrugID),
		Quantity:          req.Quantity,
		Price:             *req.Price,
		CostPrice:         req.CostPrice,
		LowStockThreshold: req.LowStockThreshold,
		BatchNumber:       req.BatchNumber,
		Supplier:          req.Supplier,
		Notes:             req.Notes,
	}
	if req.ExpiryDate != "" {
		expiry, _ := time.Parse(dateLayout, req.ExpiryDate)
		in.ExpiryDate = &expiry
	}

	rec, err := h.inventory.Create(r.Context(), actor, in)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, rec)
}

// Get handles a single stock record
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, h.inventory.Get)
}

// UpdateStock handles quantity changes
func (h *InventoryHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req StockRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	var (
		rec *domain.InventoryRecord
		err error
	)
	switch {
	case req.Quantity != nil && req.Delta == nil:
		rec, err = h.inventory.SetQuantity(r.Context(), actor, id, *req.Quantity)
	case req.Delta != nil && req.Quantity == nil:
		rec, err = h.inventory.AdjustStock(r.Context(), actor, id, *req.Delta)
	default:
		err = domain.NewValidationError("quantity", "give exactly one of quantity or delta")
	}
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, rec)
}

// UpdateThreshold handles low-stock threshold changes
func (h *InventoryHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req ThresholdRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	rec, err := h.inventory.SetThreshold(r.Context(), actor, id, *req.LowStockThreshold)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, rec)
}

// Discontinue handles hiding a record from search
func (h *InventoryHandler) Discontinue(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, h.inventory.Discontinue)
}

// Reinstate handles lifting a discontinuation
func (h *InventoryHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, h.inventory.Reinstate)
}

func (h *InventoryHandler) withRecord(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.InventoryRecord, error),
) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := op(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, rec)
}

// ChangePrice handles a single price change
func (h *InventoryHandler) ChangePrice(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req PriceRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	if req.Price == nil {
		middleware.RespondWithDomainError(w, h.logger, domain.NewValidationError("price", "is required"))
		return
	}

	change, err := h.prices.ChangePrice(r.Context(), actor, id, *req.Price, req.Reason)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, domain.PriceTrendEntry{
		PriceChange: *change,
		Change:      domain.FormatPriceChange(change.OldPrice, change.NewPrice),
	})
}

// PriceHistory handles the recent price trend of a record
func (h *InventoryHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	q := newQueryParams(r)
	limit := q.Int("limit", 0)
	if err := q.Err(); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	trend, err := h.prices.PriceTrend(r.Context(), actor, id, limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, trend)
}

// BulkPrice handles adjusting many prices at once. Records that fail are
// reported alongside the count of records that changed.
func (h *InventoryHandler) BulkPrice(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkPriceRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	adj, err := domain.ParsePriceAdjustment(req.UpdateType, req.Adjustment)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.InventoryIDs))
	for _, raw := range req.InventoryIDs {
		ids = append(ids, uuid.MustParse(raw))
	}

	updated, err := h.prices.BulkAdjust(r.Context(), actor, ids, adj, req.Reason)
	if err != nil && updated == 0 {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	resp := BulkPriceResponse{Updated: updated}
	if err != nil {
		h.logger.Warn("Bulk price adjustment partially failed", zap.Error(err))
		resp.Errors = splitJoined(err)
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// splitJoined flattens an errors.Join result into messages
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		msgs := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
