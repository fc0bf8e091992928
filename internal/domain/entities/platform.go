package entities

import "time"

// Platform is a social network posts and hashtags are scoped to
// ("instagram", "tiktok", ...). Rows are created lazily on first sighting.
type Platform struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
