package entities

import "time"

// TrendingPost is a post ranked by its engagement score. Score is derived
// from the metrics blob at query time (likes, comments, views weighted);
// ScoreTrend divides it by the post's age in hours so recent posts with
// fast-moving engagement rank above old accumulators.
type TrendingPost struct {
	PostID     string     `json:"post_id" db:"post_id"`
	Author     string     `json:"author" db:"author"`
	Caption    string     `json:"caption" db:"caption"`
	Score      float64    `json:"score" db:"score"`
	ScoreTrend float64    `json:"score_trend" db:"score_trend"`
	PostedAt   *time.Time `json:"posted_at,omitempty" db:"posted_at"`
}

// HashtagStats aggregates a hashtag's linked posts.
type HashtagStats struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	PlatformID    string     `json:"platform_id" db:"platform_id"`
	TotalPosts    int64      `json:"total_posts" db:"total_posts"`
	AvgEngagement float64    `json:"avg_engagement" db:"avg_engagement"`
	LastScraped   *time.Time `json:"last_scraped,omitempty" db:"last_scraped"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
