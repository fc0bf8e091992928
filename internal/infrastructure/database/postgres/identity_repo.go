package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// IdentityRepository implements the IdentityRepository interface for PostgreSQL
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const identityColumns = `identity_id, user_id, provider, external_id,
	       access_token, refresh_token, scopes, created_at, last_login_at`

// Create creates a new identity link
func (r *IdentityRepository) Create(ctx context.Context, identity *entities.Identity) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "create", time.Since(start), err)
	}()

	if identity.IdentityID == "" {
		identity.IdentityID = idgen.GenerateID()
	}

	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO oauth_accounts (
			identity_id, user_id, provider, external_id,
			access_token, refresh_token, scopes, created_at, last_login_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		identity.IdentityID,
		identity.UserID,
		identity.Provider,
		identity.ExternalID,
		identity.AccessToken,
		identity.RefreshToken,
		identity.Scopes,
		identity.CreatedAt,
		identity.LastLoginAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			err = repositories.ErrDuplicateIdentity
			return err
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

// GetByProviderAndExternalID retrieves an identity by provider and external ID
func (r *IdentityRepository) GetByProviderAndExternalID(ctx context.Context, provider, externalID string) (*entities.Identity, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "get_by_provider", time.Since(start), err)
	}()

	var identity entities.Identity
	query := `
		SELECT ` + identityColumns + `
		FROM oauth_accounts
		WHERE provider = $1 AND external_id = $2
		LIMIT 1
	`

	err = r.db.GetContext(ctx, &identity, query, provider, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity by provider and external ID: %w", err)
	}

	return &identity, nil
}

// GetByUserProviderExternalID retrieves the link row for a specific user
func (r *IdentityRepository) GetByUserProviderExternalID(ctx context.Context, userID, provider, externalID string) (*entities.Identity, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "get_by_user_provider", time.Since(start), err)
	}()

	var identity entities.Identity
	query := `
		SELECT ` + identityColumns + `
		FROM oauth_accounts
		WHERE user_id = $1 AND provider = $2 AND external_id = $3
		LIMIT 1
	`

	err = r.db.GetContext(ctx, &identity, query, userID, provider, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity for user: %w", err)
	}

	return &identity, nil
}

// ListByUserID retrieves all identities for a user
func (r *IdentityRepository) ListByUserID(ctx context.Context, userID string) ([]*entities.Identity, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "list_by_user", time.Since(start), err)
	}()

	var identities []*entities.Identity
	query := `
		SELECT ` + identityColumns + `
		FROM oauth_accounts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	err = r.db.SelectContext(ctx, &identities, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities by user ID: %w", err)
	}

	return identities, nil
}

// FindUserIDByIdentityEmail returns the owning user id of any identity whose
// user's email matches. Used to cross-link a new provider login onto an
// account that was itself created by a different provider.
func (r *IdentityRepository) FindUserIDByIdentityEmail(ctx context.Context, email string) (string, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "find_user_by_email", time.Since(start), err)
	}()

	var userID string
	query := `
		SELECT u.id
		FROM users u
		INNER JOIN oauth_accounts a ON a.user_id = u.id
		WHERE u.email = $1
		LIMIT 1
	`

	err = r.db.GetContext(ctx, &userID, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return "", nil
		}
		return "", fmt.Errorf("failed to find user by identity email: %w", err)
	}

	return userID, nil
}

// UpdateCredentials overwrites the stored tokens for an identity.
// A nil refresh token keeps the existing one so a provider that omits
// the refresh token on re-auth never wipes a previously stored one.
func (r *IdentityRepository) UpdateCredentials(ctx context.Context, identityID, accessToken string, refreshToken *string, scopes []string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "update_credentials", time.Since(start), err)
	}()

	query := `
		UPDATE oauth_accounts
		SET access_token = $1,
		    refresh_token = COALESCE($2, refresh_token),
		    scopes = COALESCE($3, scopes),
		    last_login_at = $4
		WHERE identity_id = $5
	`

	var scopesArg interface{}
	if scopes != nil {
		scopesArg = pq.StringArray(scopes)
	}

	result, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, scopesArg, time.Now(), identityID)
	if err != nil {
		return fmt.Errorf("failed to update identity credentials: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrIdentityNotFound
		return err
	}

	return nil
}

// Delete deletes an identity
func (r *IdentityRepository) Delete(ctx context.Context, identityID string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "delete", time.Since(start), err)
	}()

	query := `DELETE FROM oauth_accounts WHERE identity_id = $1`

	result, err := r.db.ExecContext(ctx, query, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrIdentityNotFound
		return err
	}

	return nil
}

// DeleteByProviderAndExternalID removes the link for a provider account.
// Used by deauthorize webhooks; missing rows are not an error because the
// provider may retry the callback.
func (r *IdentityRepository) DeleteByProviderAndExternalID(ctx context.Context, provider, externalID string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "delete_by_provider", time.Since(start), err)
	}()

	query := `DELETE FROM oauth_accounts WHERE provider = $1 AND external_id = $2`

	_, err = r.db.ExecContext(ctx, query, provider, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete identity by provider: %w", err)
	}

	return nil
}

// CountByUserID counts how many identities a user has
func (r *IdentityRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM oauth_accounts WHERE user_id = $1`

	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}

	return count, nil
}

// Ensure IdentityRepository implements repositories.IdentityRepository
var _ repositories.IdentityRepository = (*IdentityRepository)(nil)
