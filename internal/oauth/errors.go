package oauth

import (
	"errors"
	"fmt"
)

// ConfigError means a provider is missing a required setting. Fatal for that
// provider's flow and never retried; the message names the exact key so the
// operator knows what to fix.
type ConfigError struct {
	Provider string
	Key      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s: auth.providers.%s.%s is required", e.Provider, e.Provider, e.Key)
}

// ProviderError carries a provider rejection with the provider's own error
// body verbatim. Never synthesize a generic message in its place; the raw
// body is what operators need to diagnose a misconfigured app.
type ProviderError struct {
	Provider   string
	Operation  string // "exchange", "identity", ...
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s failed: status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Body)
}

// ErrBusinessAccountMissing is terminal for an Instagram login attempt: the
// Facebook account has no page linked to an Instagram Business account.
// User-actionable, not retried.
var ErrBusinessAccountMissing = errors.New(
	"no Instagram Business account found: link a Facebook Page to an Instagram Business account and try again")
