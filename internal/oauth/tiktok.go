package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// TikTokProvider links TikTok accounts through the TikTok Open API. TikTok
// names its client id a "client key" and wants it in the form body rather
// than basic auth, so the exchange is hand-rolled. TikTok never exposes an
// email; it does return an avatar and a refresh token. This is the one
// adapter whose state codec accepts the legacy untagged form.
type TikTokProvider struct {
	cfg    config.ProviderConfig
	codec  *StateCodec
	client *http.Client

	authorizeURL string
	tokenURL     string
	userinfoURL  string
}

var defaultTikTokScopes = []string{"user.info.basic", "user.info.profile", "user.info.stats", "video.list"}

// NewTikTokProvider creates the TikTok adapter. The codec should be built
// with the legacy allowance enabled.
func NewTikTokProvider(cfg config.ProviderConfig, codec *StateCodec) *TikTokProvider {
	return &TikTokProvider{
		cfg:          cfg,
		codec:        codec,
		client:       newHTTPClient(),
		authorizeURL: "https://www.tiktok.com/v2/auth/authorize",
		tokenURL:     "https://open.tiktokapis.com/v2/oauth/token/",
		userinfoURL:  "https://open.tiktokapis.com/v2/user/info/",
	}
}

// Name returns the provider identifier
func (p *TikTokProvider) Name() string { return "tiktok" }

// StateCodec returns this provider's state codec
func (p *TikTokProvider) StateCodec() *StateCodec { return p.codec }

func (p *TikTokProvider) checkConfig(needSecret bool) error {
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

// AuthCodeURL builds the TikTok authorization URL
func (p *TikTokProvider) AuthCodeURL(state string) (string, error) {
	if err := p.checkConfig(false); err != nil {
		return "", err
	}

	scopes := p.cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultTikTokScopes
	}

	params := url.Values{
		"client_key":    {p.cfg.ClientID},
		"redirect_uri":  {p.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, ",")},
		"state":         {state},
	}
	return p.authorizeURL + "?" + params.Encode(), nil
}

// Exchange trades the authorization code for tokens
func (p *TikTokProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	if err := p.checkConfig(true); err != nil {
		return nil, err
	}

	start := time.Now()
	status, body, err := postForm(ctx, p.client, p.Name(), "exchange", p.tokenURL, url.Values{
		"client_key":    {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {p.cfg.RedirectURI},
	})
	metrics.RecordProviderCall(p.Name(), "exchange", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to request tiktok token: %w", err)
	}
	if status != http.StatusOK {
		return nil, &ProviderError{
			Provider:   p.Name(),
			Operation:  "exchange",
			StatusCode: status,
			Body:       truncateBody(body),
		}
	}

	var result struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tiktok token response: %w", err)
	}

	// TikTok reports some rejections with a 200 and an error field
	if result.Error != "" {
		return nil, &ProviderError{
			Provider:   p.Name(),
			Operation:  "exchange",
			StatusCode: status,
			Body:       truncateBody(body),
		}
	}
	if result.AccessToken == "" {
		return nil, &ProviderError{
			Provider:   p.Name(),
			Operation:  "exchange",
			StatusCode: status,
			Body:       "access token missing from response",
		}
	}

	bundle := &TokenBundle{AccessToken: result.AccessToken}
	if result.RefreshToken != "" {
		rt := result.RefreshToken
		bundle.RefreshToken = &rt
	}
	return bundle, nil
}

// FetchIdentity retrieves the TikTok profile for the token
func (p *TikTokProvider) FetchIdentity(ctx context.Context, bundle *TokenBundle) (*ProviderIdentity, error) {
	start := time.Now()

	u := p.userinfoURL + "?" + url.Values{
		"fields": {"open_id,union_id,avatar_url,display_name"},
	}.Encode()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+bundle.AccessToken)

	status, body, err := getJSON(ctx, p.client, p.Name(), "identity", u, header)
	metrics.RecordProviderCall(p.Name(), "identity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tiktok user info: %w", err)
	}
	if status != http.StatusOK {
		return nil, &ProviderError{
			Provider:   p.Name(),
			Operation:  "identity",
			StatusCode: status,
			Body:       truncateBody(body),
		}
	}

	var result struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				UnionID     string `json:"union_id"`
				AvatarURL   string `json:"avatar_url"`
				DisplayName string `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tiktok user info: %w", err)
	}

	user := result.Data.User
	externalID := user.OpenID
	if externalID == "" {
		externalID = user.UnionID
	}
	if externalID == "" {
		return nil, fmt.Errorf("tiktok user info missing open_id")
	}

	name := user.DisplayName
	if name == "" {
		short := externalID
		if len(short) > 8 {
			short = short[:8]
		}
		name = "TikTok User " + short
	}

	identity := &ProviderIdentity{
		ExternalID:  externalID,
		DisplayName: name,
	}
	if user.AvatarURL != "" {
		identity.AvatarURL = &user.AvatarURL
	}
	return identity, nil
}

var _ Provider = (*TikTokProvider)(nil)
