package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/metrics"
	"github.com/veylhq/veyl/internal/pkg/textutil"
)

// HashtagRepository implements the HashtagRepository interface for PostgreSQL
type HashtagRepository struct {
	db *sqlx.DB
}

// NewHashtagRepository creates a new PostgreSQL hashtag repository
func NewHashtagRepository(db *sqlx.DB) *HashtagRepository {
	return &HashtagRepository{db: db}
}

// Ensure returns the hashtag with the given name on a platform, creating it
// if necessary. The name is normalized before lookup so "#Fashion" and
// "fashion" resolve to the same row.
func (r *HashtagRepository) Ensure(ctx context.Context, name, platformID string) (*entities.Hashtag, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("hashtag", "ensure", time.Since(start), err)
	}()

	name = textutil.NormalizeHashtag(name)
	if name == "" {
		err = fmt.Errorf("hashtag name is empty after normalization")
		return nil, err
	}

	hashtag, err := r.GetByNameAndPlatform(ctx, name, platformID)
	if err != nil {
		return nil, err
	}
	if hashtag != nil {
		return hashtag, nil
	}

	created := &entities.Hashtag{
		ID:         idgen.GenerateID(),
		Name:       name,
		PlatformID: platformID,
		UpdatedAt:  time.Now(),
	}

	query := `
		INSERT INTO hashtags (id, name, platform_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, platform_id) DO NOTHING
	`

	if _, err = r.db.ExecContext(ctx, query, created.ID, created.Name, created.PlatformID, created.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create hashtag: %w", err)
	}

	// Re-read in case a concurrent insert won the conflict
	hashtag, err = r.GetByNameAndPlatform(ctx, name, platformID)
	if err != nil {
		return nil, err
	}
	if hashtag == nil {
		err = fmt.Errorf("hashtag %q missing after insert", name)
		return nil, err
	}

	return hashtag, nil
}

// GetByID retrieves a hashtag by id
func (r *HashtagRepository) GetByID(ctx context.Context, id string) (*entities.Hashtag, error) {
	var hashtag entities.Hashtag
	query := `
		SELECT id, name, platform_id, last_scraped, updated_at
		FROM hashtags
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &hashtag, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrHashtagNotFound
		}
		return nil, fmt.Errorf("failed to get hashtag: %w", err)
	}

	return &hashtag, nil
}

// GetByNameAndPlatform retrieves a hashtag by normalized name and platform
func (r *HashtagRepository) GetByNameAndPlatform(ctx context.Context, name, platformID string) (*entities.Hashtag, error) {
	var hashtag entities.Hashtag
	query := `
		SELECT id, name, platform_id, last_scraped, updated_at
		FROM hashtags
		WHERE name = $1 AND platform_id = $2
	`

	err := r.db.GetContext(ctx, &hashtag, query, textutil.NormalizeHashtag(name), platformID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get hashtag by name: %w", err)
	}

	return &hashtag, nil
}

// List returns hashtags, optionally filtered by platform
func (r *HashtagRepository) List(ctx context.Context, platformID string, limit, offset int) ([]*entities.Hashtag, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("hashtag", "list", time.Since(start), err)
	}()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var hashtags []*entities.Hashtag

	if platformID != "" {
		query := `
			SELECT id, name, platform_id, last_scraped, updated_at
			FROM hashtags
			WHERE platform_id = $1
			ORDER BY name ASC
			LIMIT $2 OFFSET $3
		`
		err = r.db.SelectContext(ctx, &hashtags, query, platformID, limit, offset)
	} else {
		query := `
			SELECT id, name, platform_id, last_scraped, updated_at
			FROM hashtags
			ORDER BY name ASC
			LIMIT $1 OFFSET $2
		`
		err = r.db.SelectContext(ctx, &hashtags, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list hashtags: %w", err)
	}

	return hashtags, nil
}

// Delete removes a hashtag; post and project links cascade
func (r *HashtagRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("hashtag", "delete", time.Since(start), err)
	}()

	query := `DELETE FROM hashtags WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete hashtag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrHashtagNotFound
		return err
	}

	return nil
}

// TouchLastScraped records when a hashtag's posts were last fetched
func (r *HashtagRepository) TouchLastScraped(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE hashtags SET last_scraped = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch hashtag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrHashtagNotFound
	}

	return nil
}

// LinkPost creates the post-hashtag association if it does not exist.
// Returns true only when a new link row was created.
func (r *HashtagRepository) LinkPost(ctx context.Context, postID, hashtagID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("hashtag", "link_post", time.Since(start), err)
	}()

	query := `
		INSERT INTO post_hashtags (id, post_id, hashtag_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, hashtag_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, idgen.GenerateID(), postID, hashtagID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to link post to hashtag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListPostIDs returns ids of posts linked to a hashtag, newest links first
func (r *HashtagRepository) ListPostIDs(ctx context.Context, hashtagID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	var ids []string
	query := `
		SELECT post_id
		FROM post_hashtags
		WHERE hashtag_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &ids, query, hashtagID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list post ids for hashtag: %w", err)
	}

	return ids, nil
}

// Ensure HashtagRepository implements repositories.HashtagRepository
var _ repositories.HashtagRepository = (*HashtagRepository)(nil)
