package entities

import (
	"time"

	"github.com/lib/pq"
)

// ProjectStatus captures the monitoring lifecycle of a project.
type ProjectStatus string

const (
	ProjectDraft    ProjectStatus = "draft"
	ProjectActive   ProjectStatus = "active"
	ProjectPaused   ProjectStatus = "paused"
	ProjectArchived ProjectStatus = "archived"
)

// ScopeType describes what a project monitors.
type ScopeType string

const (
	ScopeHashtags ScopeType = "hashtags"
	ScopeCreators ScopeType = "creators"
	ScopeBoth     ScopeType = "both"
)

// Project is a saved monitoring scope: a set of hashtags and creator
// handles a user tracks across platforms. The scope_* and count columns
// are derived from the attached hashtags/creators and recomputed on every
// scope change.
type Project struct {
	ID            string         `json:"id" db:"id"`
	UserID        string         `json:"user_id" db:"user_id"`
	Name          string         `json:"name" db:"name"`
	Slug          string         `json:"slug" db:"slug"` // share-link slug, unique per user
	Description   *string        `json:"description,omitempty" db:"description"`
	Status        ProjectStatus  `json:"status" db:"status"`
	Platforms     pq.StringArray `json:"platforms" db:"platforms"`
	ScopeType     *ScopeType     `json:"scope_type,omitempty" db:"scope_type"`
	ScopeQuery    *string        `json:"scope_query,omitempty" db:"scope_query"`
	CreatorsCount int            `json:"creators_count" db:"creators_count"`
	PostsCount    int            `json:"posts_count" db:"posts_count"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// ProjectHashtag links a project to a monitored hashtag. The pair is unique.
type ProjectHashtag struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	HashtagID string    `json:"hashtag_id" db:"hashtag_id"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}

// ProjectCreator links a project to a monitored creator handle on one
// platform. The triple (project, platform, username) is unique.
type ProjectCreator struct {
	ID         string    `json:"id" db:"id"`
	ProjectID  string    `json:"project_id" db:"project_id"`
	PlatformID string    `json:"platform_id" db:"platform_id"`
	Username   string    `json:"creator_username" db:"creator_username"` // normalized, no '@'
	AddedAt    time.Time `json:"added_at" db:"added_at"`
}
