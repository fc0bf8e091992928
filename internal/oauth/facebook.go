package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// FacebookProvider links Facebook accounts. Facebook only reports an email
// when the user granted the permission; a missing or synthesized address is
// normalized to nil so the resolver never treats it as a real email.
type FacebookProvider struct {
	cfg    config.ProviderConfig
	codec  *StateCodec
	client *http.Client

	endpoint   oauth2.Endpoint
	profileURL string
}

var defaultFacebookScopes = []string{"public_profile", "email", "pages_show_list"}

// NewFacebookProvider creates the Facebook adapter
func NewFacebookProvider(cfg config.ProviderConfig, codec *StateCodec) *FacebookProvider {
	return &FacebookProvider{
		cfg:        cfg,
		codec:      codec,
		client:     newHTTPClient(),
		endpoint:   facebook.Endpoint,
		profileURL: "https://graph.facebook.com/v21.0/me",
	}
}

// Name returns the provider identifier
func (p *FacebookProvider) Name() string { return "facebook" }

// StateCodec returns this provider's state codec
func (p *FacebookProvider) StateCodec() *StateCodec { return p.codec }

func (p *FacebookProvider) oauth2Config() *oauth2.Config {
	scopes := p.cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultFacebookScopes
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     p.endpoint,
	}
}

func (p *FacebookProvider) checkConfig(needSecret bool) error {
	if p.cfg.ClientID == "" {
		return &ConfigError{Provider: p.Name(), Key: "client_id"}
	}
	if p.cfg.RedirectURI == "" {
		return &ConfigError{Provider: p.Name(), Key: "redirect_uri"}
	}
	if needSecret && p.cfg.ClientSecret == "" {
		return &ConfigError{Provider: p.Name(), Key: "client_secret"}
	}
	return nil
}

// AuthCodeURL builds the Facebook authorization URL
func (p *FacebookProvider) AuthCodeURL(state string) (string, error) {
	if err := p.checkConfig(false); err != nil {
		return "", err
	}
	return p.oauth2Config().AuthCodeURL(state), nil
}

// Exchange trades the authorization code for an access token. Facebook does
// not issue refresh tokens on this flow.
func (p *FacebookProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	if err := p.checkConfig(true); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth2Config().Exchange(ctx, code)
	metrics.RecordProviderCall(p.Name(), "exchange", time.Since(start), err)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &ProviderError{
				Provider:   p.Name(),
				Operation:  "exchange",
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       truncateBody(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("failed to exchange facebook code: %w", err)
	}

	return &TokenBundle{AccessToken: token.AccessToken}, nil
}

// FetchIdentity retrieves the Facebook profile for the token
func (p *FacebookProvider) FetchIdentity(ctx context.Context, bundle *TokenBundle) (*ProviderIdentity, error) {
	start := time.Now()

	u := p.profileURL + "?" + url.Values{
		"fields":       {"id,name,email"},
		"access_token": {bundle.AccessToken},
	}.Encode()

	status, body, err := getJSON(ctx, p.client, p.Name(), "identity", u, nil)
	metrics.RecordProviderCall(p.Name(), "identity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facebook profile: %w", err)
	}
	if status != http.StatusOK {
		return nil, &ProviderError{
			Provider:   p.Name(),
			Operation:  "identity",
			StatusCode: status,
			Body:       truncateBody(body),
		}
	}

	var info struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode facebook profile: %w", err)
	}

	if info.ID == "" {
		return nil, fmt.Errorf("facebook profile missing user id")
	}

	identity := &ProviderIdentity{
		ExternalID:  info.ID,
		DisplayName: info.Name,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = "Facebook User " + info.ID
	}

	// Only pass through an email that is real: permission may be denied,
	// and a previously synthesized address must not reach the resolver.
	if email := info.Email; email != "" && strings.Contains(email, "@") &&
		!strings.HasSuffix(email, "@veyl.io") && !strings.HasSuffix(email, "@insidr.dev") {
		identity.Email = &email
	}

	return identity, nil
}

var _ Provider = (*FacebookProvider)(nil)
