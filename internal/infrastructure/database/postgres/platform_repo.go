package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
)

// PlatformRepository implements the PlatformRepository interface for PostgreSQL
type PlatformRepository struct {
	db *sqlx.DB
}

// NewPlatformRepository creates a new PostgreSQL platform repository
func NewPlatformRepository(db *sqlx.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// Ensure returns the platform with the given name, creating it if necessary.
// Names are stored lowercase.
func (r *PlatformRepository) Ensure(ctx context.Context, name string) (*entities.Platform, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	platform, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if platform != nil {
		return platform, nil
	}

	created := &entities.Platform{
		ID:        idgen.GenerateID(),
		Name:      name,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO platforms (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, created.ID, created.Name, created.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create platform: %w", err)
	}

	// Re-read in case a concurrent insert won the conflict
	platform, err = r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if platform == nil {
		return nil, fmt.Errorf("platform %q missing after insert", name)
	}

	return platform, nil
}

// GetByName retrieves a platform by name
func (r *PlatformRepository) GetByName(ctx context.Context, name string) (*entities.Platform, error) {
	var platform entities.Platform
	query := `SELECT id, name, created_at FROM platforms WHERE name = $1`

	err := r.db.GetContext(ctx, &platform, query, strings.ToLower(name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get platform: %w", err)
	}

	return &platform, nil
}

// List returns all known platforms
func (r *PlatformRepository) List(ctx context.Context) ([]*entities.Platform, error) {
	var platforms []*entities.Platform
	query := `SELECT id, name, created_at FROM platforms ORDER BY name ASC`

	err := r.db.SelectContext(ctx, &platforms, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}

	return platforms, nil
}

// Ensure PlatformRepository implements repositories.PlatformRepository
var _ repositories.PlatformRepository = (*PlatformRepository)(nil)
