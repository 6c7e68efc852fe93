package transport

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"geopharm/internal/domain"
	"geopharm/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// decodeRequest decodes and validates a JSON body, writing the 400 itself on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requireActor returns the authenticated caller; routes behind AuthMiddleware always have one
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		logger.Error("Actor not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return actor, false
	}
	return actor, true
}

// idParam parses a UUID path parameter
func idParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryParams reads optional typed query values, keeping the first parse error
type queryParams struct {
	values map[string][]string
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) String(name string) string {
	if v, ok := q.values[name]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *queryParams) fail(name, message string) {
	if q.err == nil {
		q.err = domain.NewValidationError(name, message)
	}
}

func (q *queryParams) Float(name string) *float64 {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		q.fail(name, "must be a number")
		return nil
	}
	return &f
}

func (q *queryParams) Int(name string, def int) int {
	raw := q.String(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer")
		return def
	}
	return n
}

func (q *queryParams) Bool(name string) *bool {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *queryParams) Decimal(name string) *decimal.Decimal {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		q.fail(name, "must be a decimal amount")
		return nil
	}
	return &d
}

// Err returns the first parse failure as a domain validation error
func (q *queryParams) Err() error {
	return q.err
}
