package urlutil

import (
	"net/url"
)

// BuildAuthCallbackURL builds the frontend URL a successful OAuth login
// redirects to. Returns a URL like:
// {baseURL}/auth/callback?token={token}&user_id={userID}&email={email}&name={name}
// All parameters are URL-encoded.
func BuildAuthCallbackURL(baseURL, token, userID, email, name string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/auth/callback"
	q := u.Query()
	q.Set("token", token)
	q.Set("user_id", userID)
	if email != "" {
		q.Set("email", email)
	}
	if name != "" {
		q.Set("name", name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildAuthErrorURL builds the frontend URL a failed OAuth login redirects to.
// Returns a URL like:
// {baseURL}/auth/callback?error={code}&error_description={description}
// The description is free text from the provider and is URL-encoded.
func BuildAuthErrorURL(baseURL, code, description string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/auth/callback"
	q := u.Query()
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildProjectShareURL builds the public share link for a project slug.
// Returns a URL like: {baseURL}/p/{slug}
func BuildProjectShareURL(baseURL, slug string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/p/" + slug
	return u.String(), nil
}
