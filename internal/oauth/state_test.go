package oauth

import (
	"strings"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	codec := NewStateCodec("test-secret", false)

	tests := []struct {
		name   string
		userID string
	}{
		{"user id", "123456789"},
		{"snowflake id", "1867530123456789012"},
		{"empty is anonymous", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := codec.Issue(tt.userID)
			got := codec.Verify(token)
			if got != tt.userID {
				t.Errorf("Verify(Issue(%q)) = %q, want %q", tt.userID, got, tt.userID)
			}
		})
	}
}

func TestStateAnonymousToken(t *testing.T) {
	codec := NewStateCodec("test-secret", false)

	token := codec.IssueAnonymous()
	if strings.Contains(token, "_") {
		t.Errorf("anonymous token should be a bare timestamp, got %q", token)
	}
	if got := codec.Verify(token); got != "" {
		t.Errorf("Verify(anonymous) = %q, want empty", got)
	}
}

func TestStateTamperedTag(t *testing.T) {
	codec := NewStateCodec("test-secret", false)

	token := codec.Issue("424242")
	parts := strings.Split(token, "_")
	if len(parts) != 3 {
		t.Fatalf("expected 3-segment token, got %q", token)
	}

	// Flip one character in the tag segment
	tag := []byte(parts[2])
	if tag[0] == 'a' {
		tag[0] = 'b'
	} else {
		tag[0] = 'a'
	}
	tampered := parts[0] + "_" + parts[1] + "_" + string(tag)

	if got := codec.Verify(tampered); got != "" {
		t.Errorf("Verify(tampered) = %q, want empty", got)
	}
}

func TestStateWrongSecret(t *testing.T) {
	issuer := NewStateCodec("secret-a", false)
	verifier := NewStateCodec("secret-b", false)

	token := issuer.Issue("424242")
	if got := verifier.Verify(token); got != "" {
		t.Errorf("Verify with wrong secret = %q, want empty", got)
	}
}

func TestStateMalformedInput(t *testing.T) {
	codec := NewStateCodec("test-secret", false)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"bare timestamp", "1700000000"},
		{"random string", "not-a-state-token"},
		{"two segments without legacy", "1700000000_424242"},
		{"empty identity segment", "1700000000__deadbeef"},
		{"many empty segments", "___"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codec.Verify(tt.token); got != "" {
				t.Errorf("Verify(%q) = %q, want empty", tt.token, got)
			}
		})
	}
}

func TestStateLegacyTwoSegment(t *testing.T) {
	legacy := NewStateCodec("test-secret", true)
	strict := NewStateCodec("test-secret", false)

	token := "1700000000_424242"

	if got := legacy.Verify(token); got != "424242" {
		t.Errorf("legacy Verify(%q) = %q, want 424242", token, got)
	}
	if got := strict.Verify(token); got != "" {
		t.Errorf("strict Verify(%q) = %q, want empty", token, got)
	}

	// Tagged tokens still verify through a legacy codec
	tagged := legacy.Issue("424242")
	if got := legacy.Verify(tagged); got != "424242" {
		t.Errorf("legacy Verify(tagged) = %q, want 424242", got)
	}
}
