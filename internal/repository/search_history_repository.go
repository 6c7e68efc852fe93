package repository

import (
	"context"
	"fmt"
	"time"

	"geopharm/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SearchHistoryRepository records patient queries
type SearchHistoryRepository interface {
	Create(ctx context.Context, entry *domain.SearchHistory) error
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error)
	PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error)
}

type searchHistoryRepository struct {
	db *sqlx.DB
}

// NewSearchHistoryRepository creates a new instance of SearchHistoryRepository
func NewSearchHistoryRepository(db *sqlx.DB) SearchHistoryRepository {
	return &searchHistoryRepository{db: db}
}

func (r *searchHistoryRepository) Create(ctx context.Context, e *domain.SearchHistory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, searched_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.UserID, e.Query, e.SearchedAt)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

func (r *searchHistoryRepository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error) {
	query := `
		SELECT id, user_id, query, searched_at
		FROM search_history
		WHERE user_id = $1
		ORDER BY searched_at DESC
		LIMIT $2
	`

	entries := []domain.SearchHistory{}
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	return entries, nil
}

// PopularQueries counts case-folded queries since the given time, most frequent first
func (r *searchHistoryRepository) PopularQueries(ctx context.Context, since time.Time, limit int) ([]domain.QueryCount, error) {
	query := `
		SELECT LOWER(query) AS query, COUNT(*) AS count
		FROM search_history
		WHERE searched_at >= $1 AND query <> ''
		GROUP BY LOWER(query)
		ORDER BY count DESC, query
		LIMIT $2
	`

	counts := []domain.QueryCount{}
	if err := r.db.SelectContext(ctx, &counts, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to count popular queries: %w", err)
	}
	return counts, nil
}
