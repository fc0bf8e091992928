package repositories

import (
	"context"

	"github.com/veylhq/veyl/internal/domain/entities"
)

// ProjectRepository defines the interface for project data access.
// Projects are always scoped to their owning user; lookups take the owner
// id so one user can never read another's monitoring scopes.
type ProjectRepository interface {
	// Create a new project
	Create(ctx context.Context, project *entities.Project) error

	// GetByID retrieves a project owned by the given user
	GetByID(ctx context.Context, userID, projectID string) (*entities.Project, error)

	// GetBySlug retrieves a project by its share slug; returns (nil, nil) when absent
	GetBySlug(ctx context.Context, userID, slug string) (*entities.Project, error)

	// ListByUserID retrieves all projects owned by a user
	ListByUserID(ctx context.Context, userID string) ([]*entities.Project, error)

	// Update an existing project
	Update(ctx context.Context, project *entities.Project) error

	// Delete a project and its scope links
	Delete(ctx context.Context, userID, projectID string) error

	// AttachHashtag links a hashtag to a project.
	// Returns ErrAlreadyLinked when the pair exists.
	AttachHashtag(ctx context.Context, link *entities.ProjectHashtag) error

	// DetachHashtag removes a project-hashtag link by link id
	DetachHashtag(ctx context.Context, projectID, linkID string) error

	// ListHashtags returns the hashtags attached to a project along with
	// their link rows
	ListHashtags(ctx context.Context, projectID string) ([]*entities.ProjectHashtag, []*entities.Hashtag, error)

	// AttachCreator links a creator handle to a project.
	// Returns ErrAlreadyLinked when the triple exists.
	AttachCreator(ctx context.Context, link *entities.ProjectCreator) error

	// DetachCreator removes a project-creator link by link id
	DetachCreator(ctx context.Context, projectID, linkID string) error

	// ListCreators returns the creator links attached to a project
	ListCreators(ctx context.Context, projectID string) ([]*entities.ProjectCreator, error)
}
