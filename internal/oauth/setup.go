package oauth

import (
	"github.com/veylhq/veyl/internal/config"
)

// BuildRegistry constructs the provider set from configuration. Providers
// absent from the config are simply not registered; a request for one
// surfaces as "unknown provider" rather than a half-configured adapter.
func BuildRegistry(authCfg *config.AuthConfig) *Registry {
	// TikTok gets its own codec with the legacy untagged allowance;
	// everyone else requires the integrity tag.
	standard := NewStateCodec(authCfg.StateSecret, false)
	legacy := NewStateCodec(authCfg.StateSecret, true)

	registry := NewRegistry()

	if cfg := authCfg.Provider("google"); cfg != nil {
		registry.Register(NewGoogleProvider(*cfg, standard))
	}
	if cfg := authCfg.Provider("facebook"); cfg != nil {
		registry.Register(NewFacebookProvider(*cfg, standard))
	}
	if cfg := authCfg.Provider("instagram"); cfg != nil {
		registry.Register(NewInstagramProvider(*cfg, standard))
	}
	if cfg := authCfg.Provider("tiktok"); cfg != nil {
		registry.Register(NewTikTokProvider(*cfg, legacy))
	}

	return registry
}
