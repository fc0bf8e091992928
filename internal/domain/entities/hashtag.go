package entities

import "time"

// Hashtag is a normalized (lowercase, no '#') tag scoped to a platform.
// The pair (name, platform_id) is unique; rows are created on first
// sighting either by explicit user action or by caption reconciliation.
type Hashtag struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	PlatformID  string     `json:"platform_id" db:"platform_id"`
	LastScraped *time.Time `json:"last_scraped,omitempty" db:"last_scraped"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// PostHashtag links a post to a hashtag. The pair is unique; reconciliation
// creates links idempotently.
type PostHashtag struct {
	ID        string    `json:"id" db:"id"`
	PostID    string    `json:"post_id" db:"post_id"`
	HashtagID string    `json:"hashtag_id" db:"hashtag_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
