package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// StateCodec issues and verifies the opaque "state" value round-tripped
// through a provider's redirect. Anonymous states are a bare unix timestamp;
// states carrying a user identity append the user id and an integrity tag:
//
//	"{ts}"                anonymous
//	"{ts}_{uid}_{tag8}"   tag8 = first 8 hex chars of SHA-256("{ts}_{uid}_{secret}")
//
// Tokens are stateless and never persisted. The codec enforces no expiry;
// the validity window is whatever the provider allows between redirect and
// callback. Known limitation, kept on purpose.
type StateCodec struct {
	secret string

	// allowLegacy accepts the older 2-segment "{ts}_{uid}" form with no
	// integrity tag. Only the TikTok wiring enables this; existing TikTok
	// links were issued in that form and would break without it.
	allowLegacy bool

	log *slog.Logger
}

// NewStateCodec creates a codec with the shared integrity secret.
func NewStateCodec(secret string, allowLegacy bool) *StateCodec {
	return &StateCodec{
		secret:      secret,
		allowLegacy: allowLegacy,
		log:         slog.Default().With(slog.String("component", "oauth_state")),
	}
}

// Issue returns a state token embedding the given user id, or an anonymous
// token when userID is empty.
func (c *StateCodec) Issue(userID string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	if userID == "" {
		return ts
	}
	return ts + "_" + userID + "_" + c.tag(ts, userID)
}

// IssueAnonymous returns a state token with no embedded identity.
func (c *StateCodec) IssueAnonymous() string {
	return c.Issue("")
}

// Verify extracts the embedded user id from a state token, or "" for
// anonymous and malformed tokens. Malformed input never errors: the token
// doubles as a plain anti-replay nonce for anonymous flows, so verification
// degrades to "no embedded identity" instead of rejecting the callback.
func (c *StateCodec) Verify(token string) string {
	if token == "" || !strings.Contains(token, "_") {
		return ""
	}

	parts := strings.Split(token, "_")
	switch {
	case len(parts) >= 3:
		ts, userID, got := parts[0], parts[1], parts[2]
		if userID == "" {
			return ""
		}
		if got == c.tag(ts, userID) {
			return userID
		}
		c.log.Warn("state integrity tag mismatch, treating as anonymous")
		return ""
	case len(parts) == 2 && c.allowLegacy:
		// Untagged legacy form. No integrity check possible.
		if parts[1] == "" {
			return ""
		}
		c.log.Warn("accepted legacy state token without integrity tag",
			slog.String("user_id", parts[1]))
		return parts[1]
	default:
		return ""
	}
}

func (c *StateCodec) tag(ts, userID string) string {
	sum := sha256.Sum256([]byte(ts + "_" + userID + "_" + c.secret))
	return hex.EncodeToString(sum[:])[:8]
}
