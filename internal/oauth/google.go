package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// GoogleProvider links Google accounts. Google always exposes the user's
// real email, so this is the one provider whose identity record is expected
// to carry one.
type GoogleProvider struct {
	cfg    config.ProviderConfig
	codec  *StateCodec
	client *http.Client

	endpoint    oauth2.Endpoint
	userinfoURL string
}

var defaultGoogleScopes = []string{"openid", "email", "profile"}

// NewGoogleProvider creates the Google adapter
func NewGoogleProvider(cfg config.ProviderConfig, codec *StateCodec) *GoogleProvider {
	return &GoogleProvider{
		cfg:         cfg,
		codec:       codec,
		client:      newHTTPClient(),
		endpoint:    google.Endpoint,
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// Name returns the provider identifier
func (p *GoogleProvider) Name() string { return "google" }

// StateCodec returns this provider's state codec
func (p *GoogleProvider) StateCodec() *StateCodec { return p.codec }

func (p *GoogleProvider) oauth2Config() *oauth2.Config {
	scopes := p.cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultGoogleScopes
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     p.endpoint,
	}
}

func (p *GoogleProvider) checkConfig(needSecret bool) error {
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

// AuthCodeURL builds the Google authorization URL. offline access with a
// consent prompt so a refresh token is issued on every link.
func (p *GoogleProvider) AuthCodeURL(state string) (string, error) {
	if err := p.checkConfig(false); err != nil {
		return "", err
	}
	return p.oauth2Config().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange trades the authorization code for tokens
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
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
		return nil, fmt.Errorf("failed to exchange google code: %w", err)
	}

	bundle := &TokenBundle{AccessToken: token.AccessToken}
	if token.RefreshToken != "" {
		rt := token.RefreshToken
		bundle.RefreshToken = &rt
	}
	return bundle, nil
}

// FetchIdentity retrieves the Google profile for the token
func (p *GoogleProvider) FetchIdentity(ctx context.Context, bundle *TokenBundle) (*ProviderIdentity, error) {
	start := time.Now()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+bundle.AccessToken)

	status, body, err := getJSON(ctx, p.client, p.Name(), "identity", p.userinfoURL, header)
	metrics.RecordProviderCall(p.Name(), "identity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google userinfo: %w", err)
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
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode google userinfo: %w", err)
	}

	if info.ID == "" {
		return nil, fmt.Errorf("google userinfo missing user id")
	}
	if info.Email == "" {
		return nil, fmt.Errorf("google userinfo missing email")
	}

	identity := &ProviderIdentity{
		ExternalID:  info.ID,
		DisplayName: info.Name,
		Email:       &info.Email,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = emailLocalPart(info.Email)
	}
	if info.Picture != "" {
		identity.AvatarURL = &info.Picture
	}
	return identity, nil
}

func emailLocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}

var _ Provider = (*GoogleProvider)(nil)
