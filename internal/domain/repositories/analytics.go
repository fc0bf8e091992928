package repositories

import (
	"context"

	"github.com/veylhq/veyl/internal/domain/entities"
)

// AnalyticsRepository defines read-only aggregate queries over posts and
// hashtags. Scores are computed from the posts' metrics blobs at query
// time; nothing here mutates state.
type AnalyticsRepository interface {
	// TrendingPosts returns posts ordered by engagement score, highest
	// first. An empty platformID means all platforms.
	TrendingPosts(ctx context.Context, platformID string, limit int) ([]*entities.TrendingPost, error)

	// HashtagStats returns per-hashtag post counts and average engagement,
	// most-linked first. An empty platformID means all platforms.
	HashtagStats(ctx context.Context, platformID string, limit int) ([]*entities.HashtagStats, error)
}
