package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// AnalyticsRepository implements the AnalyticsRepository interface for
// PostgreSQL. All queries are aggregates over posts/post_hashtags; scores
// are computed from the metrics JSONB at query time rather than persisted.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new PostgreSQL analytics repository
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TrendingPosts returns posts ordered by engagement score. The score
// weighs comments above likes and discounts raw view counts; the trend
// score divides by the post's age in hours (floored at one hour) so a
// fresh post outranks an old one with the same totals.
func (r *AnalyticsRepository) TrendingPosts(ctx context.Context, platformID string, limit int) ([]*entities.TrendingPost, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("analytics", "trending_posts", time.Since(start), err)
	}()

	query := `
		WITH scored AS (
			SELECT p.id AS post_id, p.author, p.caption, p.posted_at,
			       COALESCE((p.metrics->>'likes')::numeric, 0)
			         + 2 * COALESCE((p.metrics->>'comments')::numeric, 0)
			         + 0.05 * COALESCE((p.metrics->>'views')::numeric, 0) AS score,
			       GREATEST(EXTRACT(EPOCH FROM (NOW() - COALESCE(p.posted_at, p.fetched_at))) / 3600.0, 1.0) AS age_hours
			FROM posts p
			WHERE ($1 = '' OR p.platform_id = $1)
		)
		SELECT post_id, author, caption, posted_at,
		       score::float8 AS score,
		       (score / age_hours)::float8 AS score_trend
		FROM scored
		ORDER BY score DESC, posted_at DESC NULLS LAST
		LIMIT $2`

	var rows []*entities.TrendingPost
	err = r.db.SelectContext(ctx, &rows, query, platformID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending posts: %w", err)
	}

	return rows, nil
}

// HashtagStats returns per-hashtag post counts and average engagement of
// the linked posts, most-linked first. Hashtags without links still appear
// with zero counts.
func (r *AnalyticsRepository) HashtagStats(ctx context.Context, platformID string, limit int) ([]*entities.HashtagStats, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("analytics", "hashtag_stats", time.Since(start), err)
	}()

	query := `
		SELECT h.id, h.name, h.platform_id,
		       COUNT(ph.post_id) AS total_posts,
		       COALESCE(AVG(
		           COALESCE((p.metrics->>'likes')::numeric, 0)
		             + 2 * COALESCE((p.metrics->>'comments')::numeric, 0)
		       ), 0)::float8 AS avg_engagement,
		       h.last_scraped, h.updated_at
		FROM hashtags h
		LEFT JOIN post_hashtags ph ON ph.hashtag_id = h.id
		LEFT JOIN posts p ON p.id = ph.post_id
		WHERE ($1 = '' OR h.platform_id = $1)
		GROUP BY h.id, h.name, h.platform_id, h.last_scraped, h.updated_at
		ORDER BY total_posts DESC, h.name
		LIMIT $2`

	var rows []*entities.HashtagStats
	err = r.db.SelectContext(ctx, &rows, query, platformID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashtag stats: %w", err)
	}

	return rows, nil
}

var _ repositories.AnalyticsRepository = (*AnalyticsRepository)(nil)
