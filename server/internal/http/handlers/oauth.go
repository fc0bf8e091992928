package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/domain/services"
	"github.com/veylhq/veyl/internal/oauth"
	"github.com/veylhq/veyl/internal/pkg/urlutil"
)

const stateSessionName = "oauth_state"

// OAuthHandler serves the provider login flow. Failures never surface as raw
// error pages: every callback outcome is a redirect to the frontend, carrying
// either a session token or an error code and description.
type OAuthHandler struct {
	service     *services.OAuthService
	store       sessions.Store
	frontendURL string
	log         *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler. store holds the anti-replay
// cookie for anonymous flows.
func NewOAuthHandler(service *services.OAuthService, store sessions.Store, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		service:     service,
		store:       store,
		frontendURL: frontendURL,
		log:         slog.Default().With(slog.String("handler", "oauth")),
	}
}

// Start handles GET /api/v1/auth/{provider}/start. An optional user_id query
// parameter links the new provider to an already logged-in account.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	userID := r.URL.Query().Get("user_id")

	result, err := h.service.StartAuth(providerName, userID)
	if err != nil {
		h.redirectError(w, r, providerName, err)
		return
	}

	// Remember the issued state so the callback can reject replays
	session, _ := h.store.Get(r, stateSessionName)
	session.Values["state"] = result.State
	session.Options.MaxAge = 600
	session.Options.HttpOnly = true
	if err := session.Save(r, w); err != nil {
		h.log.Warn("failed to save state cookie", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles GET /api/v1/auth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	query := r.URL.Query()

	// The provider itself may deliver an error (user denied, app in review)
	if errCode := query.Get("error"); errCode != "" {
		desc := query.Get("error_description")
		h.log.Warn("provider returned error",
			slog.String("provider", providerName),
			slog.String("code", errCode),
			slog.String("description", desc))
		h.redirect(w, r, mustErrorURL(h.frontendURL, errCode, desc))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" {
		h.redirect(w, r, mustErrorURL(h.frontendURL, "missing_code", "the provider did not return an authorization code"))
		return
	}

	// Anti-replay: when a state cookie exists it must match. Absent cookies
	// are tolerated; linked flows may start from another device.
	if session, err := h.store.Get(r, stateSessionName); err == nil {
		if stored, ok := session.Values["state"].(string); ok && stored != "" && stored != state {
			h.log.Warn("state mismatch", slog.String("provider", providerName))
			h.redirect(w, r, mustErrorURL(h.frontendURL, "state_mismatch", "authorization state did not match"))
			return
		}
		session.Options.MaxAge = -1
		_ = session.Save(r, w)
	}

	result, err := h.service.HandleCallback(r.Context(), providerName, code, state)
	if err != nil {
		h.redirectError(w, r, providerName, err)
		return
	}

	callbackURL, err := urlutil.BuildAuthCallbackURL(
		h.frontendURL, result.Token, result.User.ID, result.User.Email, result.User.DisplayName)
	if err != nil {
		h.redirect(w, r, mustErrorURL(h.frontendURL, "internal_error", "failed to build redirect"))
		return
	}
	h.redirect(w, r, callbackURL)
}

// LinkedAccounts handles GET /api/v1/auth/accounts (authenticated)
func (h *OAuthHandler) LinkedAccounts(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	accounts, err := h.service.ListLinkedAccounts(r.Context(), userCtx.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// Unlink handles DELETE /api/v1/auth/{provider}/accounts/{external_id}
func (h *OAuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	vars := mux.Vars(r)
	if err := h.service.Unlink(r.Context(), userCtx.UserID, vars["provider"], vars["external_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// redirectError maps an internal failure to a frontend error redirect,
// carrying provider error bodies through verbatim
func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, providerName string, err error) {
	code := "auth_failed"
	description := err.Error()

	var cfgErr *oauth.ConfigError
	var provErr *oauth.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		code = "provider_not_configured"
	case errors.As(err, &provErr):
		code = "provider_error"
		description = provErr.Body
	case errors.Is(err, oauth.ErrBusinessAccountMissing):
		code = "no_business_account"
	}

	h.log.Warn("oauth flow failed",
		slog.String("provider", providerName),
		slog.String("code", code),
		slog.String("error", err.Error()))
	h.redirect(w, r, mustErrorURL(h.frontendURL, code, description))
}

func (h *OAuthHandler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusFound)
}

// mustErrorURL never fails for a config-validated base URL; fall back to the
// bare frontend root if it somehow does
func mustErrorURL(baseURL, code, description string) string {
	u, err := urlutil.BuildAuthErrorURL(baseURL, code, description)
	if err != nil {
		return baseURL
	}
	return u
}
