package entities

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Post is a unit of external social content, keyed by the provider-assigned
// identifier. The metrics blob is free-form JSON (likes, comments, views...)
// whose exact shape differs per platform.
type Post struct {
	ID         string         `json:"id" db:"id"` // provider-assigned id or shortcode
	PlatformID string         `json:"platform_id" db:"platform_id"`
	Author     string         `json:"author" db:"author"`
	Caption    string         `json:"caption" db:"caption"`
	MediaURL   *string        `json:"media_url,omitempty" db:"media_url"`
	Metrics    types.JSONText `json:"metrics,omitempty" db:"metrics"`
	APIPayload types.JSONText `json:"-" db:"api_payload"` // raw provider payload, kept for debugging
	Source     string         `json:"source" db:"source"` // "meta_api", "tiktok_api", "oembed", "seed"
	PostedAt   *time.Time     `json:"posted_at,omitempty" db:"posted_at"`
	FetchedAt  time.Time      `json:"fetched_at" db:"fetched_at"`
}

// MetricsMap decodes the metrics blob; a missing or malformed blob yields
// an empty map rather than an error.
func (p *Post) MetricsMap() map[string]any {
	m := make(map[string]any)
	if len(p.Metrics) == 0 {
		return m
	}
	if err := json.Unmarshal(p.Metrics, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Permalink derives the public URL for the post. Instagram shortcodes are
// expanded to the canonical permalink; anything already absolute passes
// through unchanged.
func (p *Post) Permalink(platformName string) string {
	if p.MediaURL != nil && len(*p.MediaURL) > 4 && (*p.MediaURL)[:4] == "http" {
		return *p.MediaURL
	}
	if len(p.ID) > 4 && p.ID[:4] == "http" {
		return p.ID
	}
	if platformName == "instagram" && p.ID != "" {
		return "https://www.instagram.com/p/" + p.ID + "/"
	}
	return ""
}
