package repositories

import (
	"context"

	"github.com/veylhq/veyl/internal/domain/entities"
)

// IdentityRepository defines the interface for linked provider account access.
// Supports multi-provider authentication where users can link multiple
// providers (Google, Facebook, Instagram, TikTok) to a single account.
type IdentityRepository interface {
	// Create creates a new identity link for a user.
	// Returns ErrDuplicateIdentity when the (provider, external_id) pair
	// is already linked; callers racing on the unique constraint are
	// expected to re-resolve rather than fail the login.
	Create(ctx context.Context, identity *entities.Identity) error

	// GetByProviderAndExternalID retrieves an identity by provider and external ID.
	// This is the primary lookup during login; returns (nil, nil) when absent.
	GetByProviderAndExternalID(ctx context.Context, provider, externalID string) (*entities.Identity, error)

	// GetByUserProviderExternalID retrieves the link for a specific user,
	// used by the credential upsert; returns (nil, nil) when absent.
	GetByUserProviderExternalID(ctx context.Context, userID, provider, externalID string) (*entities.Identity, error)

	// ListByUserID retrieves all identities linked to a user
	ListByUserID(ctx context.Context, userID string) ([]*entities.Identity, error)

	// FindUserIDByIdentityEmail returns the owning user id of any identity
	// whose user's email matches; the cross-linking lookup used by account
	// resolution. Returns "" when no such identity exists.
	FindUserIDByIdentityEmail(ctx context.Context, email string) (string, error)

	// UpdateCredentials overwrites the stored tokens for an identity.
	// A nil refresh token keeps the existing one; nil scopes keep existing scopes.
	UpdateCredentials(ctx context.Context, identityID, accessToken string, refreshToken *string, scopes []string) error

	// Delete removes an identity link (provider deauthorization)
	Delete(ctx context.Context, identityID string) error

	// DeleteByProviderAndExternalID removes the link for a provider account,
	// used by deauthorize/data-deletion webhooks
	DeleteByProviderAndExternalID(ctx context.Context, provider, externalID string) error

	// CountByUserID counts how many identities a user has linked
	CountByUserID(ctx context.Context, userID string) (int, error)
}
