package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Frontend    FrontendConfig `yaml:"frontend"`
	Social      SocialConfig   `yaml:"social"`
	Environment string         `yaml:"environment" default:"local"` // local, dev, prod
}

// ServerConfig holds the HTTP API server configuration
type ServerConfig struct {
	Host string `yaml:"host" default:"localhost"`
	Port int    `yaml:"port" default:"8080"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"veyl"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// SocialConfig holds credentials for direct platform API access used by the
// post refresh job and hashtag media lookups
type SocialConfig struct {
	Meta MetaConfig `yaml:"meta"`
}

// MetaConfig holds Graph API application credentials. The oEmbed endpoint
// authenticates with "{app_id}|{app_secret}"; hashtag search additionally
// needs the Instagram Business account id.
type MetaConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	IGUserID  string `yaml:"ig_user_id,omitempty"`
}

// FrontendConfig holds the web frontend the API redirects back to after OAuth
type FrontendConfig struct {
	BaseURL string `yaml:"base_url" default:"http://localhost:8081"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT                JWTConfig        `yaml:"jwt"`
	StateSecret        string           `yaml:"state_secret"`         // shared secret for OAuth state integrity tags
	SessionCookieKey   string           `yaml:"session_cookie_key"`   // key for the state anti-replay cookie store
	WebhookVerifyToken string           `yaml:"webhook_verify_token"` // Meta webhook handshake token
	Providers          []ProviderConfig `yaml:"providers"`
}

// JWTConfig holds JWT session token configuration
type JWTConfig struct {
	SigningKey string        `yaml:"signing_key"`             // Secret key for signing JWTs
	Lifetime   time.Duration `yaml:"lifetime" default:"168h"` // Default 7 days
}

// ProviderConfig holds OAuth provider configuration
type ProviderConfig struct {
	Name         string   `yaml:"name"`                    // "google", "facebook", "instagram", "tiktok"
	ClientID     string   `yaml:"client_id"`               // OAuth client ID (TikTok calls it a client key)
	ClientSecret string   `yaml:"client_secret,omitempty"` // OAuth client secret
	RedirectURI  string   `yaml:"redirect_uri"`            // registered callback URL
	Scopes       []string `yaml:"scopes,omitempty"`        // overrides the provider's default scope list
}

// Provider returns the configuration for a named provider, or nil if absent.
func (a *AuthConfig) Provider(name string) *ProviderConfig {
	for i := range a.Providers {
		if a.Providers[i].Name == name {
			return &a.Providers[i]
		}
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
