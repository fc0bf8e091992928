package repositories

import (
	"context"
	"time"

	"github.com/veylhq/veyl/internal/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create a new user. Returns ErrDuplicateEmail on an email collision.
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by their email address
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// Update an existing user
	Update(ctx context.Context, user *entities.User) error

	// Delete a user
	Delete(ctx context.Context, id string) error

	// List users with pagination and optional filtering
	List(ctx context.Context, opts ListUsersOptions) ([]*entities.User, int64, error)

	// UpdateLastLogin updates the user's last login timestamp
	UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error

	// ExistsByEmail checks if a user exists by email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ListUsersOptions provides filtering and pagination options for listing users
type ListUsersOptions struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Role     *entities.Role // filter by role
	IsActive *bool          // filter by active status
	Search   string         // search in display_name or email
}
