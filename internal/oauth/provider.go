package oauth

import (
	"context"
	"fmt"
)

// TokenBundle is the credential set obtained from a provider's token
// exchange. RefreshToken is nil for providers that do not issue one.
type TokenBundle struct {
	AccessToken  string
	RefreshToken *string
	Scopes       []string
}

// ProviderIdentity is the normalized identity record every adapter returns.
// Raw provider JSON never leaves the adapter layer. Email is nil for
// providers that do not expose one (Instagram, TikTok) or when Facebook
// only returns a synthesized address.
type ProviderIdentity struct {
	ExternalID  string
	DisplayName string
	Email       *string
	AvatarURL   *string
}

// Provider is one external identity provider. Each adapter knows how to
// build an authorization URL, exchange a code for tokens, and fetch a
// normalized identity record.
type Provider interface {
	// Name returns the provider identifier ("google", "facebook",
	// "instagram", "tiktok")
	Name() string

	// AuthCodeURL builds the authorization URL carrying the given state.
	// Returns a *ConfigError naming the missing setting when the provider
	// is not fully configured.
	AuthCodeURL(state string) (string, error)

	// Exchange trades an authorization code for a token bundle. Provider
	// rejections surface as *ProviderError with the provider's response
	// body verbatim.
	Exchange(ctx context.Context, code string) (*TokenBundle, error)

	// FetchIdentity retrieves the normalized identity for a token bundle.
	FetchIdentity(ctx context.Context, bundle *TokenBundle) (*ProviderIdentity, error)

	// StateCodec returns the codec used to issue and verify this
	// provider's state tokens.
	StateCodec() *StateCodec
}

// Registry holds all registered providers
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider Provider) {
	r.providers[provider.Name()] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return provider, nil
}

// List returns all registered provider names
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
