package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/veylhq/veyl/internal/config"
)

func testProviderConfig(name string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:         name,
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "https://api.example.com/auth/" + name + "/callback",
	}
}

func testCodec() *StateCodec {
	return NewStateCodec("test-secret", false)
}

func TestAuthCodeURLMissingConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProviderConfig
		wantKey string
	}{
		{
			name:    "missing client id",
			cfg:     config.ProviderConfig{Name: "google", RedirectURI: "https://x/cb"},
			wantKey: "auth.providers.google.client_id",
		},
		{
			name:    "missing redirect uri",
			cfg:     config.ProviderConfig{Name: "google", ClientID: "id"},
			wantKey: "auth.providers.google.redirect_uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewGoogleProvider(tt.cfg, testCodec())
			_, err := p.AuthCodeURL("state")
			if err == nil {
				t.Fatal("expected config error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q does not name %q", err.Error(), tt.wantKey)
			}
		})
	}
}

func TestGoogleAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(testProviderConfig("google"), testCodec())

	u, err := p.AuthCodeURL("my-state")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}

	for _, want := range []string{"client_id=test-client-id", "state=my-state", "access_type=offline", "prompt=consent"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth URL missing %q: %s", want, u)
		}
	}
}

func TestTikTokAuthCodeURLUsesClientKey(t *testing.T) {
	p := NewTikTokProvider(testProviderConfig("tiktok"), NewStateCodec("test-secret", true))

	u, err := p.AuthCodeURL("my-state")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	if !strings.Contains(u, "client_key=test-client-id") {
		t.Errorf("auth URL should carry client_key, got %s", u)
	}
	if strings.Contains(u, "client_id=") {
		t.Errorf("auth URL should not carry client_id, got %s", u)
	}
}

func TestAuthCodeURLJoinsScopesWithCommas(t *testing.T) {
	cfg := testProviderConfig("instagram")
	cfg.Scopes = []string{"pages_show_list", "instagram_basic"}
	p := NewInstagramProvider(cfg, testCodec())

	u, err := p.AuthCodeURL("my-state")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	if !strings.Contains(u, "scope="+url.QueryEscape("pages_show_list,instagram_basic")) {
		t.Errorf("auth URL scope not comma-joined: %s", u)
	}
}

func TestTikTokExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("client_key"); got != "test-client-id" {
			t.Errorf("client_key = %q", got)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","refresh_token":"rt-456"}`))
	}))
	defer srv.Close()

	p := NewTikTokProvider(testProviderConfig("tiktok"), NewStateCodec("test-secret", true))
	p.tokenURL = srv.URL

	bundle, err := p.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if bundle.AccessToken != "at-123" {
		t.Errorf("AccessToken = %q", bundle.AccessToken)
	}
	if bundle.RefreshToken == nil || *bundle.RefreshToken != "rt-456" {
		t.Errorf("RefreshToken = %v, want rt-456", bundle.RefreshToken)
	}
}

func TestTikTokExchangeErrorBodyVerbatim(t *testing.T) {
	const providerBody = `{"error":"invalid_grant","error_description":"Authorization code expired."}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(providerBody))
	}))
	defer srv.Close()

	p := NewTikTokProvider(testProviderConfig("tiktok"), NewStateCodec("test-secret", true))
	p.tokenURL = srv.URL

	_, err := p.Exchange(context.Background(), "stale-code")
	if err == nil {
		t.Fatal("expected provider error")
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if provErr.Body != providerBody {
		t.Errorf("Body = %q, want provider body verbatim", provErr.Body)
	}
	if provErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", provErr.StatusCode)
	}
}

func TestTikTokFetchIdentityNoEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"user":{"open_id":"open-abc","display_name":"Dana","avatar_url":"https://cdn/av.jpg"}}}`))
	}))
	defer srv.Close()

	p := NewTikTokProvider(testProviderConfig("tiktok"), NewStateCodec("test-secret", true))
	p.userinfoURL = srv.URL

	identity, err := p.FetchIdentity(context.Background(), &TokenBundle{AccessToken: "at-123"})
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if identity.ExternalID != "open-abc" {
		t.Errorf("ExternalID = %q", identity.ExternalID)
	}
	if identity.Email != nil {
		t.Errorf("Email = %v, want nil", *identity.Email)
	}
	if identity.AvatarURL == nil || *identity.AvatarURL != "https://cdn/av.jpg" {
		t.Errorf("AvatarURL = %v", identity.AvatarURL)
	}
}

func TestFacebookFetchIdentityEmailFiltering(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantEmail string // "" means nil
	}{
		{
			name:      "real email passes through",
			response:  `{"id":"fb-1","name":"Jane","email":"jane@gmail.com"}`,
			wantEmail: "jane@gmail.com",
		},
		{
			name:      "missing email becomes nil",
			response:  `{"id":"fb-2","name":"NoMail"}`,
			wantEmail: "",
		},
		{
			name:      "synthesized veyl address becomes nil",
			response:  `{"id":"fb-3","name":"Synth","email":"facebook_fb-3@veyl.io"}`,
			wantEmail: "",
		},
		{
			name:      "synthesized insidr address becomes nil",
			response:  `{"id":"fb-4","name":"Synth","email":"facebook_fb-4@insidr.dev"}`,
			wantEmail: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			p := NewFacebookProvider(testProviderConfig("facebook"), testCodec())
			p.profileURL = srv.URL

			identity, err := p.FetchIdentity(context.Background(), &TokenBundle{AccessToken: "at"})
			if err != nil {
				t.Fatalf("FetchIdentity: %v", err)
			}

			if tt.wantEmail == "" {
				if identity.Email != nil {
					t.Errorf("Email = %q, want nil", *identity.Email)
				}
			} else {
				if identity.Email == nil || *identity.Email != tt.wantEmail {
					t.Errorf("Email = %v, want %q", identity.Email, tt.wantEmail)
				}
			}
		})
	}
}

func TestInstagramFetchIdentityPagesChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"page-1"},{"id":"page-2"}]}`))
	})
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, r *http.Request) {
		// First page has no linked business account
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"page-1"}`))
	})
	mux.HandleFunc("/page-2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"instagram_business_account":{"id":"ig-77","username":"brandstudio"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewInstagramProvider(testProviderConfig("instagram"), testCodec())
	p.graphURL = srv.URL

	identity, err := p.FetchIdentity(context.Background(), &TokenBundle{AccessToken: "long-token"})
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if identity.ExternalID != "ig-77" {
		t.Errorf("ExternalID = %q, want ig-77", identity.ExternalID)
	}
	if identity.DisplayName != "brandstudio" {
		t.Errorf("DisplayName = %q", identity.DisplayName)
	}
	if identity.Email != nil {
		t.Errorf("Email = %v, want nil", *identity.Email)
	}
}

func TestInstagramFetchIdentityNoBusinessAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"page-1"}]}`))
	})
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"page-1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewInstagramProvider(testProviderConfig("instagram"), testCodec())
	p.graphURL = srv.URL

	_, err := p.FetchIdentity(context.Background(), &TokenBundle{AccessToken: "long-token"})
	if !errors.Is(err, ErrBusinessAccountMissing) {
		t.Fatalf("err = %v, want ErrBusinessAccountMissing", err)
	}
}

func TestInstagramExchangeTwoStepChain(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("grant_type") == "fb_exchange_token" {
			calls = append(calls, "long")
			if got := r.URL.Query().Get("fb_exchange_token"); got != "short-token" {
				t.Errorf("fb_exchange_token = %q", got)
			}
			w.Write([]byte(`{"access_token":"long-token"}`))
			return
		}
		calls = append(calls, "short")
		w.Write([]byte(`{"access_token":"short-token"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewInstagramProvider(testProviderConfig("instagram"), testCodec())
	p.graphURL = srv.URL

	bundle, err := p.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if bundle.AccessToken != "long-token" {
		t.Errorf("AccessToken = %q, want long-token", bundle.AccessToken)
	}
	if len(calls) != 2 || calls[0] != "short" || calls[1] != "long" {
		t.Errorf("calls = %v, want [short long]", calls)
	}
}

func TestTransientFailureRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123"}`))
	}))
	defer srv.Close()

	p := NewTikTokProvider(testProviderConfig("tiktok"), NewStateCodec("test-secret", true))
	p.tokenURL = srv.URL

	bundle, err := p.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange after retries: %v", err)
	}
	if bundle.AccessToken != "at-123" {
		t.Errorf("AccessToken = %q", bundle.AccessToken)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestBuildRegistry(t *testing.T) {
	authCfg := &config.AuthConfig{
		StateSecret: "test-secret",
		Providers: []config.ProviderConfig{
			testProviderConfig("google"),
			testProviderConfig("tiktok"),
		},
	}

	registry := BuildRegistry(authCfg)

	if _, err := registry.Get("google"); err != nil {
		t.Errorf("google not registered: %v", err)
	}
	if _, err := registry.Get("facebook"); err == nil {
		t.Error("facebook should not be registered")
	}

	// The TikTok codec accepts the legacy untagged form, google's does not
	tiktok, err := registry.Get("tiktok")
	if err != nil {
		t.Fatalf("tiktok not registered: %v", err)
	}
	if got := tiktok.StateCodec().Verify("1700000000_424242"); got != "424242" {
		t.Errorf("tiktok legacy Verify = %q, want 424242", got)
	}
	google, _ := registry.Get("google")
	if got := google.StateCodec().Verify("1700000000_424242"); got != "" {
		t.Errorf("google legacy Verify = %q, want empty", got)
	}
}
