package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// PostRepository implements the PostRepository interface for PostgreSQL
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new PostgreSQL post repository
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, platform_id, author, caption, media_url,
	       metrics, api_payload, source, posted_at, fetched_at`

// Upsert inserts or refreshes a post keyed by its provider-assigned id.
// A refresh replaces the metrics and payload blobs but keeps posted_at
// when the provider stops reporting it.
func (r *PostRepository) Upsert(ctx context.Context, post *entities.Post) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("post", "upsert", time.Since(start), err)
	}()

	if post.FetchedAt.IsZero() {
		post.FetchedAt = time.Now()
	}

	query := `
		INSERT INTO posts (
			id, platform_id, author, caption, media_url,
			metrics, api_payload, source, posted_at, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			author = EXCLUDED.author,
			caption = EXCLUDED.caption,
			media_url = COALESCE(EXCLUDED.media_url, posts.media_url),
			metrics = EXCLUDED.metrics,
			api_payload = EXCLUDED.api_payload,
			source = EXCLUDED.source,
			posted_at = COALESCE(EXCLUDED.posted_at, posts.posted_at),
			fetched_at = EXCLUDED.fetched_at
	`

	_, err = r.db.ExecContext(ctx, query,
		post.ID,
		post.PlatformID,
		post.Author,
		post.Caption,
		post.MediaURL,
		post.Metrics,
		post.APIPayload,
		post.Source,
		post.PostedAt,
		post.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by its provider-assigned id
func (r *PostRepository) GetByID(ctx context.Context, id string) (*entities.Post, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("post", "get_by_id", time.Since(start), err)
	}()

	var post entities.Post
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	err = r.db.GetContext(ctx, &post, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

// List returns posts with pagination, newest first
func (r *PostRepository) List(ctx context.Context, opts repositories.ListPostsOptions) ([]*entities.Post, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("post", "list", time.Since(start), err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.PlatformID != "" {
		conditions = append(conditions, fmt.Sprintf("platform_id = $%d", paramIndex))
		args = append(args, opts.PlatformID)
		paramIndex++
	}

	if opts.Author != "" {
		conditions = append(conditions, fmt.Sprintf("author = $%d", paramIndex))
		args = append(args, opts.Author)
		paramIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT `+postColumns+`
		FROM posts
		%s
		ORDER BY posted_at DESC NULLS LAST, fetched_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, paramIndex, paramIndex+1)

	args = append(args, limit, offset)

	var posts []*entities.Post
	err = r.db.SelectContext(ctx, &posts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

// ListByAuthors returns recent posts by any of the given author handles
func (r *PostRepository) ListByAuthors(ctx context.Context, authors []string, limit int) ([]*entities.Post, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("post", "list_by_authors", time.Since(start), err)
	}()

	if len(authors) == 0 {
		return nil, nil
	}

	if limit <= 0 {
		limit = 50
	}

	var posts []*entities.Post
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE author = ANY($1)
		ORDER BY posted_at DESC NULLS LAST, fetched_at DESC
		LIMIT $2
	`

	err = r.db.SelectContext(ctx, &posts, query, pq.StringArray(authors), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by authors: %w", err)
	}

	return posts, nil
}

// SearchByCaption returns posts whose caption contains the needle,
// case-insensitive, newest first
func (r *PostRepository) SearchByCaption(ctx context.Context, needle string, platformID string, limit int) ([]*entities.Post, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("post", "search_by_caption", time.Since(start), err)
	}()

	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []interface{}
	paramIndex := 1

	conditions = append(conditions, fmt.Sprintf("caption ILIKE $%d", paramIndex))
	args = append(args, "%"+needle+"%")
	paramIndex++

	if platformID != "" {
		conditions = append(conditions, fmt.Sprintf("platform_id = $%d", paramIndex))
		args = append(args, platformID)
		paramIndex++
	}

	query := fmt.Sprintf(`
		SELECT `+postColumns+`
		FROM posts
		WHERE %s
		ORDER BY posted_at DESC NULLS LAST, fetched_at DESC
		LIMIT $%d`, strings.Join(conditions, " AND "), paramIndex)

	args = append(args, limit)

	var posts []*entities.Post
	err = r.db.SelectContext(ctx, &posts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}

	return posts, nil
}

// Ensure PostRepository implements repositories.PostRepository
var _ repositories.PostRepository = (*PostRepository)(nil)
