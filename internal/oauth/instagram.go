package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// InstagramProvider links Instagram Business accounts through the Facebook
// Graph API. The exchange is a two-step chain (short-lived token, then
// long-lived), and the identity is only reachable through a secondary
// lookup: enumerate the user's Facebook Pages and find one with a linked
// Instagram Business account. No business account after exhausting every
// page is a terminal failure for the login attempt. Instagram never exposes
// an email.
type InstagramProvider struct {
	cfg    config.ProviderConfig
	codec  *StateCodec
	client *http.Client
	log    *slog.Logger

	dialogURL string
	graphURL  string
}

var defaultInstagramScopes = []string{"pages_show_list", "pages_read_engagement", "instagram_basic"}

// NewInstagramProvider creates the Instagram Business adapter
func NewInstagramProvider(cfg config.ProviderConfig, codec *StateCodec) *InstagramProvider {
	return &InstagramProvider{
		cfg:       cfg,
		codec:     codec,
		client:    newHTTPClient(),
		log:       slog.Default().With(slog.String("provider", "instagram")),
		dialogURL: "https://www.facebook.com/v21.0/dialog/oauth",
		graphURL:  "https://graph.facebook.com/v21.0",
	}
}

// Name returns the provider identifier
func (p *InstagramProvider) Name() string { return "instagram" }

// StateCodec returns this provider's state codec
func (p *InstagramProvider) StateCodec() *StateCodec { return p.codec }

func (p *InstagramProvider) checkConfig(needSecret bool) error {
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

// AuthCodeURL builds the Facebook OAuth dialog URL with Instagram scopes
func (p *InstagramProvider) AuthCodeURL(state string) (string, error) {
	if err := p.checkConfig(false); err != nil {
		return "", err
	}

	scopes := p.cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultInstagramScopes
	}

	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"redirect_uri":  {p.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, ",")},
		"state":         {state},
	}
	return p.dialogURL + "?" + params.Encode(), nil
}

// Exchange runs the short-lived then long-lived token chain
func (p *InstagramProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	if err := p.checkConfig(true); err != nil {
		return nil, err
	}

	shortToken, err := p.fetchToken(ctx, url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"redirect_uri":  {p.cfg.RedirectURI},
		"code":          {code},
	})
	if err != nil {
		return nil, err
	}

	longToken, err := p.fetchToken(ctx, url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {p.cfg.ClientID},
		"client_secret":     {p.cfg.ClientSecret},
		"fb_exchange_token": {shortToken},
	})
	if err != nil {
		return nil, err
	}

	return &TokenBundle{AccessToken: longToken}, nil
}

func (p *InstagramProvider) fetchToken(ctx context.Context, params url.Values) (string, error) {
	start := time.Now()
	status, body, err := getJSON(ctx, p.client, p.Name(), "exchange", p.graphURL+"/oauth/access_token?"+params.Encode(), nil)
	metrics.RecordProviderCall(p.Name(), "exchange", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to request instagram token: %w", err)
	}
	if status != http.StatusOK {
		return "", &ProviderError{
			Provider:   p.Name(),
			Operation:  "exchange",
			StatusCode: status,
			Body:       truncateBody(body),
		}
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode instagram token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", &ProviderError{
			Provider:   p.Name(),
			Operation:  "exchange",
			StatusCode: status,
			Body:       "access token missing from response",
		}
	}
	return result.AccessToken, nil
}

// FetchIdentity walks the Pages chain to find the Instagram Business account
func (p *InstagramProvider) FetchIdentity(ctx context.Context, bundle *TokenBundle) (*ProviderIdentity, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordProviderCall(p.Name(), "identity", time.Since(start), err)
	}()

	pagesURL := p.graphURL + "/me/accounts?" + url.Values{"access_token": {bundle.AccessToken}}.Encode()
	status, body, err := getJSON(ctx, p.client, p.Name(), "identity", pagesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list facebook pages: %w", err)
	}
	if status != http.StatusOK {
		err = &ProviderError{
			Provider:   p.Name(),
			Operation:  "identity",
			StatusCode: status,
			Body:       truncateBody(body),
		}
		return nil, err
	}

	var pages struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err = json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("failed to decode pages response: %w", err)
	}

	for _, page := range pages.Data {
		pageURL := p.graphURL + "/" + page.ID + "?" + url.Values{
			"fields":       {"instagram_business_account{username,id}"},
			"access_token": {bundle.AccessToken},
		}.Encode()

		status, body, lookupErr := getJSON(ctx, p.client, p.Name(), "identity", pageURL, nil)
		if lookupErr != nil || status != http.StatusOK {
			// A single unreadable page does not fail the chain
			p.log.Warn("failed to read page, continuing",
				slog.String("page_id", page.ID),
				slog.Int("status", status))
			continue
		}

		var result struct {
			InstagramBusinessAccount *struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"instagram_business_account"`
		}
		if jsonErr := json.Unmarshal(body, &result); jsonErr != nil {
			continue
		}

		if ig := result.InstagramBusinessAccount; ig != nil && ig.ID != "" {
			p.log.Info("found instagram business account",
				slog.String("ig_user_id", ig.ID))
			name := ig.Username
			if name == "" {
				name = "Instagram User " + ig.ID
			}
			return &ProviderIdentity{
				ExternalID:  ig.ID,
				DisplayName: name,
			}, nil
		}
	}

	err = ErrBusinessAccountMissing
	return nil, err
}

var _ Provider = (*InstagramProvider)(nil)
