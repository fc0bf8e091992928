package entities

import (
	"time"

	"github.com/lib/pq"
)

// Identity represents a linked OAuth provider account for a user.
// Users can have multiple identities (e.g., Google + TikTok) linked to one
// account, but a given (provider, external_id) pair belongs to exactly one
// user; the table carries a unique constraint on the pair.
type Identity struct {
	IdentityID   string         `json:"identity_id" db:"identity_id"`
	UserID       string         `json:"user_id" db:"user_id"`
	Provider     string         `json:"provider" db:"provider"`       // "google", "facebook", "instagram", "tiktok"
	ExternalID   string         `json:"external_id" db:"external_id"` // provider-issued user id
	AccessToken  string         `json:"-" db:"access_token"`          // bearer credential, never serialized
	RefreshToken *string        `json:"-" db:"refresh_token"`         // nil for providers without refresh
	Scopes       pq.StringArray `json:"scopes,omitempty" db:"scopes"` // granted scopes, if the provider reports them
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty" db:"last_login_at"`
}

// ProviderKey returns a formatted provider+external_id string for logging
func (i *Identity) ProviderKey() string {
	return i.Provider + ":" + i.ExternalID
}
