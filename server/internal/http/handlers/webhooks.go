package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veylhq/veyl/internal/domain/services"
)

// WebhookHandler serves Meta's webhook surface: the verification handshake,
// deauthorize callbacks, and data-deletion requests.
type WebhookHandler struct {
	oauth       *services.OAuthService
	verifyToken string
	appSecret   string
	log         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(oauthSvc *services.OAuthService, verifyToken, appSecret string) *WebhookHandler {
	return &WebhookHandler{
		oauth:       oauthSvc,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		log:         slog.Default().With(slog.String("handler", "webhook")),
	}
}

// Verify handles GET /api/v1/webhooks/meta; the subscription handshake.
// Meta sends hub.mode, hub.verify_token, and hub.challenge; the challenge
// must be echoed back verbatim when the token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.log.Warn("webhook verification rejected", slog.String("mode", mode))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(challenge))
}

// Deauthorize handles POST /api/v1/webhooks/meta/deauthorize. Meta posts a
// signed_request form field; the payload carries the deauthorizing user id.
func (h *WebhookHandler) Deauthorize(w http.ResponseWriter, r *http.Request) {
	h.handleSignedRequest(w, r, "facebook")
}

// DataDeletion handles POST /api/v1/webhooks/meta/data-deletion. Treated the
// same as deauthorization: the identity link is removed.
func (h *WebhookHandler) DataDeletion(w http.ResponseWriter, r *http.Request) {
	h.handleSignedRequest(w, r, "facebook")
}

func (h *WebhookHandler) handleSignedRequest(w http.ResponseWriter, r *http.Request, provider string) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payload, err := h.parseSignedRequest(r.PostFormValue("signed_request"))
	if err != nil {
		h.log.Warn("invalid signed request", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.UserID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.oauth.HandleDeauthorize(r.Context(), provider, payload.UserID); err != nil {
		h.log.Error("deauthorize failed",
			slog.String("external_id", payload.UserID),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// Data-deletion responses carry a confirmation code Meta shows the user
	writeJSON(w, http.StatusOK, map[string]string{
		"confirmation_code": payload.UserID,
	})
}

type signedPayload struct {
	UserID    string `json:"user_id"`
	Algorithm string `json:"algorithm"`
	IssuedAt  int64  `json:"issued_at"`
}

// parseSignedRequest validates and decodes Meta's signed_request format:
// "{base64url(hmac-sha256 sig)}.{base64url(json payload)}"
func (h *WebhookHandler) parseSignedRequest(signed string) (*signedPayload, error) {
	parts := strings.SplitN(signed, ".", 2)
	if len(parts) != 2 {
		return nil, errInvalidSignedRequest
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errInvalidSignedRequest
	}

	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write([]byte(parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		h.log.Warn("signed request signature mismatch",
			slog.String("got", hex.EncodeToString(sig)))
		return nil, errInvalidSignedRequest
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errInvalidSignedRequest
	}

	var payload signedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errInvalidSignedRequest
	}
	return &payload, nil
}

var errInvalidSignedRequest = errors.New("invalid signed request")
