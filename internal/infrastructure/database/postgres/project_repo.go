package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// ProjectRepository implements the ProjectRepository interface for PostgreSQL
type ProjectRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewProjectRepository creates a new PostgreSQL project repository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "project")),
	}
}

const projectColumns = `id, user_id, name, slug, description, status, platforms,
	       scope_type, scope_query, creators_count, posts_count,
	       last_run_at, created_at, updated_at`

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "create", time.Since(start), err)
	}()

	if project.ID == "" {
		project.ID = idgen.GenerateID()
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	r.log.Debug("creating project",
		slog.String("id", project.ID),
		slog.String("user_id", project.UserID),
		slog.String("slug", project.Slug))

	query := `
		INSERT INTO projects (
			id, user_id, name, slug, description, status, platforms,
			scope_type, scope_query, creators_count, posts_count,
			last_run_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Slug,
		project.Description,
		project.Status,
		project.Platforms,
		project.ScopeType,
		project.ScopeQuery,
		project.CreatorsCount,
		project.PostsCount,
		project.LastRunAt,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project owned by the given user
func (r *ProjectRepository) GetByID(ctx context.Context, userID, projectID string) (*entities.Project, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "get_by_id", time.Since(start), err)
	}()

	var project entities.Project
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1 AND user_id = $2
	`

	err = r.db.GetContext(ctx, &project, query, projectID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrProjectNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// GetBySlug retrieves a project by its share slug
func (r *ProjectRepository) GetBySlug(ctx context.Context, userID, slug string) (*entities.Project, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "get_by_slug", time.Since(start), err)
	}()

	var project entities.Project
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE slug = $1 AND user_id = $2
	`

	err = r.db.GetContext(ctx, &project, query, slug, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project by slug: %w", err)
	}

	return &project, nil
}

// ListByUserID retrieves all projects owned by a user, newest first
func (r *ProjectRepository) ListByUserID(ctx context.Context, userID string) ([]*entities.Project, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "list_by_user", time.Since(start), err)
	}()

	var projects []*entities.Project
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	err = r.db.SelectContext(ctx, &projects, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Update an existing project
func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "update", time.Since(start), err)
	}()

	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects SET
			name = $1,
			slug = $2,
			description = $3,
			status = $4,
			platforms = $5,
			scope_type = $6,
			scope_query = $7,
			creators_count = $8,
			posts_count = $9,
			last_run_at = $10,
			updated_at = $11
		WHERE id = $12 AND user_id = $13
	`

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Slug,
		project.Description,
		project.Status,
		project.Platforms,
		project.ScopeType,
		project.ScopeQuery,
		project.CreatorsCount,
		project.PostsCount,
		project.LastRunAt,
		project.UpdatedAt,
		project.ID,
		project.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrProjectNotFound
		return err
	}

	return nil
}

// Delete removes a project; scope links cascade
func (r *ProjectRepository) Delete(ctx context.Context, userID, projectID string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "delete", time.Since(start), err)
	}()

	query := `DELETE FROM projects WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrProjectNotFound
		return err
	}

	return nil
}

// AttachHashtag links a hashtag to a project
func (r *ProjectRepository) AttachHashtag(ctx context.Context, link *entities.ProjectHashtag) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "attach_hashtag", time.Since(start), err)
	}()

	if link.ID == "" {
		link.ID = idgen.GenerateID()
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now()
	}

	query := `
		INSERT INTO project_hashtags (id, project_id, hashtag_id, added_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.db.ExecContext(ctx, query, link.ID, link.ProjectID, link.HashtagID, link.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = repositories.ErrAlreadyLinked
			return err
		}
		return fmt.Errorf("failed to attach hashtag to project: %w", err)
	}

	return nil
}

// DetachHashtag removes a project-hashtag link by link id
func (r *ProjectRepository) DetachHashtag(ctx context.Context, projectID, linkID string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "detach_hashtag", time.Since(start), err)
	}()

	query := `DELETE FROM project_hashtags WHERE id = $1 AND project_id = $2`

	result, err := r.db.ExecContext(ctx, query, linkID, projectID)
	if err != nil {
		return fmt.Errorf("failed to detach hashtag from project: %w", err)
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

// ListHashtags returns the hashtags attached to a project with their link rows
func (r *ProjectRepository) ListHashtags(ctx context.Context, projectID string) ([]*entities.ProjectHashtag, []*entities.Hashtag, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "list_hashtags", time.Since(start), err)
	}()

	type linkedRow struct {
		LinkID      string     `db:"link_id"`
		ProjectID   string     `db:"project_id"`
		HashtagID   string     `db:"hashtag_id"`
		AddedAt     time.Time  `db:"added_at"`
		Name        string     `db:"name"`
		PlatformID  string     `db:"platform_id"`
		LastScraped *time.Time `db:"last_scraped"`
		UpdatedAt   time.Time  `db:"updated_at"`
	}

	var rows []linkedRow
	query := `
		SELECT ph.id AS link_id, ph.project_id, ph.hashtag_id, ph.added_at,
		       h.name, h.platform_id, h.last_scraped, h.updated_at
		FROM project_hashtags ph
		INNER JOIN hashtags h ON h.id = ph.hashtag_id
		WHERE ph.project_id = $1
		ORDER BY ph.added_at ASC
	`

	err = r.db.SelectContext(ctx, &rows, query, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list project hashtags: %w", err)
	}

	links := make([]*entities.ProjectHashtag, len(rows))
	hashtags := make([]*entities.Hashtag, len(rows))
	for i, row := range rows {
		links[i] = &entities.ProjectHashtag{
			ID:        row.LinkID,
			ProjectID: row.ProjectID,
			HashtagID: row.HashtagID,
			AddedAt:   row.AddedAt,
		}
		hashtags[i] = &entities.Hashtag{
			ID:          row.HashtagID,
			Name:        row.Name,
			PlatformID:  row.PlatformID,
			LastScraped: row.LastScraped,
			UpdatedAt:   row.UpdatedAt,
		}
	}

	return links, hashtags, nil
}

// AttachCreator links a creator handle to a project
func (r *ProjectRepository) AttachCreator(ctx context.Context, link *entities.ProjectCreator) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "attach_creator", time.Since(start), err)
	}()

	if link.ID == "" {
		link.ID = idgen.GenerateID()
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = time.Now()
	}

	query := `
		INSERT INTO project_creators (id, project_id, platform_id, creator_username, added_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query, link.ID, link.ProjectID, link.PlatformID, link.Username, link.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = repositories.ErrAlreadyLinked
			return err
		}
		return fmt.Errorf("failed to attach creator to project: %w", err)
	}

	return nil
}

// DetachCreator removes a project-creator link by link id
func (r *ProjectRepository) DetachCreator(ctx context.Context, projectID, linkID string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "detach_creator", time.Since(start), err)
	}()

	query := `DELETE FROM project_creators WHERE id = $1 AND project_id = $2`

	result, err := r.db.ExecContext(ctx, query, linkID, projectID)
	if err != nil {
		return fmt.Errorf("failed to detach creator from project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = fmt.Errorf("creator link not found: %s", linkID)
		return err
	}

	return nil
}

// ListCreators returns the creator links attached to a project
func (r *ProjectRepository) ListCreators(ctx context.Context, projectID string) ([]*entities.ProjectCreator, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("project", "list_creators", time.Since(start), err)
	}()

	var creators []*entities.ProjectCreator
	query := `
		SELECT id, project_id, platform_id, creator_username, added_at
		FROM project_creators
		WHERE project_id = $1
		ORDER BY added_at ASC
	`

	err = r.db.SelectContext(ctx, &creators, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project creators: %w", err)
	}

	return creators, nil
}

// Ensure ProjectRepository implements repositories.ProjectRepository
var _ repositories.ProjectRepository = (*ProjectRepository)(nil)
