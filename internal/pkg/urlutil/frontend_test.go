package urlutil

import (
	"strings"
	"testing"
)

func TestBuildAuthCallbackURL(t *testing.T) {
	got, err := BuildAuthCallbackURL("https://veyl.io", "tok.en", "42", "jane@gmail.com", "Jane Doe")
	if err != nil {
		t.Fatalf("BuildAuthCallbackURL() error = %v", err)
	}
	if !strings.HasPrefix(got, "https://veyl.io/auth/callback?") {
		t.Errorf("unexpected prefix: %s", got)
	}
	for _, want := range []string{"token=tok.en", "user_id=42", "email=jane%40gmail.com", "name=Jane+Doe"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %s", want, got)
		}
	}
}

func TestBuildAuthCallbackURLOmitsEmpty(t *testing.T) {
	got, err := BuildAuthCallbackURL("https://veyl.io", "tok", "42", "", "")
	if err != nil {
		t.Fatalf("BuildAuthCallbackURL() error = %v", err)
	}
	if strings.Contains(got, "email=") || strings.Contains(got, "name=") {
		t.Errorf("empty params should be omitted: %s", got)
	}
}

func TestBuildAuthErrorURL(t *testing.T) {
	got, err := BuildAuthErrorURL("http://localhost:8081", "oauth_error", "token exchange failed: bad code")
	if err != nil {
		t.Fatalf("BuildAuthErrorURL() error = %v", err)
	}
	for _, want := range []string{"error=oauth_error", "error_description=token+exchange+failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %s", want, got)
		}
	}
}

func TestBuildProjectShareURL(t *testing.T) {
	got, err := BuildProjectShareURL("https://veyl.io", "summer-trends")
	if err != nil {
		t.Fatalf("BuildProjectShareURL() error = %v", err)
	}
	if got != "https://veyl.io/p/summer-trends" {
		t.Errorf("BuildProjectShareURL() = %s", got)
	}
}
