package repositories

import (
	"context"
	"time"

	"github.com/veylhq/veyl/internal/domain/entities"
)

// PlatformRepository manages the fixed set of social platforms.
// Platforms are created lazily the first time a name is seen.
type PlatformRepository interface {
	// Ensure returns the platform with the given normalized name,
	// creating it if necessary
	Ensure(ctx context.Context, name string) (*entities.Platform, error)

	// GetByName retrieves a platform; returns (nil, nil) when absent
	GetByName(ctx context.Context, name string) (*entities.Platform, error)

	// List returns all known platforms
	List(ctx context.Context) ([]*entities.Platform, error)
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	// Upsert inserts or refreshes a post keyed by its provider-assigned id
	Upsert(ctx context.Context, post *entities.Post) error

	// GetByID retrieves a post; returns (nil, nil) when absent
	GetByID(ctx context.Context, id string) (*entities.Post, error)

	// List returns posts with pagination, newest first
	List(ctx context.Context, opts ListPostsOptions) ([]*entities.Post, error)

	// ListByAuthors returns recent posts by any of the given author handles
	ListByAuthors(ctx context.Context, authors []string, limit int) ([]*entities.Post, error)

	// SearchByCaption returns posts whose caption contains the (case-insensitive)
	// needle, newest first; the database fallback for hashtag lookups
	SearchByCaption(ctx context.Context, needle string, platformID string, limit int) ([]*entities.Post, error)
}

// ListPostsOptions provides filtering and pagination for post listings
type ListPostsOptions struct {
	Limit      int
	Offset     int
	PlatformID string // empty for all platforms
	Author     string // empty for all authors
}

// HashtagRepository defines the interface for hashtag data access
type HashtagRepository interface {
	// Ensure returns the hashtag with the given normalized name on a
	// platform, creating it if necessary
	Ensure(ctx context.Context, name, platformID string) (*entities.Hashtag, error)

	// GetByID retrieves a hashtag
	GetByID(ctx context.Context, id string) (*entities.Hashtag, error)

	// GetByNameAndPlatform retrieves a hashtag; returns (nil, nil) when absent
	GetByNameAndPlatform(ctx context.Context, name, platformID string) (*entities.Hashtag, error)

	// List returns hashtags, optionally filtered by platform
	List(ctx context.Context, platformID string, limit, offset int) ([]*entities.Hashtag, error)

	// Delete removes a hashtag and its links
	Delete(ctx context.Context, id string) error

	// TouchLastScraped records when a hashtag's posts were last fetched
	TouchLastScraped(ctx context.Context, id string, at time.Time) error

	// LinkPost creates the post-hashtag association if it does not exist.
	// Returns true when a new link was created, false when it already existed.
	LinkPost(ctx context.Context, postID, hashtagID string) (bool, error)

	// ListPostIDs returns ids of posts linked to a hashtag
	ListPostIDs(ctx context.Context, hashtagID string, limit int) ([]string, error)
}
