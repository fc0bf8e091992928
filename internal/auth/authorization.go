package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// UserContext contains authenticated user information
type UserContext struct {
	UserID string
	Email  string
	Role   string
}

// contextKey is the key for storing user info in context
type contextKey string

const userContextKey contextKey = "user"

// GetUserFromContext extracts the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// SetUserInContext stores the authenticated user in the context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// RequireAdmin checks if the authenticated user is an admin
func RequireAdmin(ctx context.Context) error {
	user, err := GetUserFromContext(ctx)
	if err != nil {
		return err
	}
	if user.Role != "admin" {
		return ErrForbidden
	}
	return nil
}
