package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/oauth"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

// SynthesizedDomain is the domain used for emails synthesized from provider
// data when a provider does not expose a real one.
const SynthesizedDomain = "veyl.io"

// legacySynthesizedDomain appears in rows created by an earlier deployment;
// it is still recognized as synthetic by the realness check.
const legacySynthesizedDomain = "insidr.dev"

var providerPrefixes = []string{"instagram_", "facebook_", "tiktok_", "google_"}

// OAuthService owns the account-linking flow: resolving a provider identity
// to a local user, upserting the stored link, and minting the session token.
type OAuthService struct {
	userRepo     repositories.UserRepository
	identityRepo repositories.IdentityRepository
	registry     *oauth.Registry
	jwtManager   *auth.JWTManager
	log          *slog.Logger
}

// NewOAuthService creates a new OAuth service
func NewOAuthService(
	userRepo repositories.UserRepository,
	identityRepo repositories.IdentityRepository,
	registry *oauth.Registry,
	jwtManager *auth.JWTManager,
) *OAuthService {
	return &OAuthService{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		registry:     registry,
		jwtManager:   jwtManager,
		log:          slog.Default().With(slog.String("service", "oauth")),
	}
}

// StartAuthResult is the redirect bundle returned by StartAuth
type StartAuthResult struct {
	AuthURL string
	State   string
}

// StartAuth issues a state token and builds the provider authorization URL.
// userID is empty for anonymous logins.
func (s *OAuthService) StartAuth(providerName, userID string) (*StartAuthResult, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	state := provider.StateCodec().Issue(userID)
	authURL, err := provider.AuthCodeURL(state)
	if err != nil {
		return nil, err
	}

	s.log.Info("starting oauth flow",
		slog.String("provider", providerName),
		slog.Bool("linked", userID != ""))

	return &StartAuthResult{AuthURL: authURL, State: state}, nil
}

// CallbackResult is what a completed OAuth callback produces
type CallbackResult struct {
	User      *entities.User
	Token     string
	ExpiresAt time.Time
}

// HandleCallback runs the full callback: exchange the code, fetch the
// identity, resolve the local user, upsert the link, and mint a session JWT.
func (s *OAuthService) HandleCallback(ctx context.Context, providerName, code, state string) (*CallbackResult, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	linkedUserID := provider.StateCodec().Verify(state)
	if linkedUserID != "" {
		s.log.Info("callback carries linked user",
			slog.String("provider", providerName),
			slog.String("user_id", linkedUserID))
	}

	bundle, err := provider.Exchange(ctx, code)
	if err != nil {
		metrics.OAuthLogins.WithLabelValues(providerName, "exchange_failed").Inc()
		return nil, err
	}

	identity, err := provider.FetchIdentity(ctx, bundle)
	if err != nil {
		metrics.OAuthLogins.WithLabelValues(providerName, "identity_failed").Inc()
		return nil, err
	}

	user, err := s.ResolveUser(ctx, providerName, identity.ExternalID, identity.Email, identity.DisplayName, linkedUserID)
	if err != nil {
		metrics.OAuthLogins.WithLabelValues(providerName, "resolve_failed").Inc()
		return nil, err
	}

	err = s.LinkAccount(ctx, user.ID, providerName, identity.ExternalID, bundle.AccessToken, bundle.RefreshToken, bundle.Scopes)
	if errors.Is(err, repositories.ErrDuplicateIdentity) {
		// Lost a race creating the link: another callback owns the pair
		// now. Re-resolve once; priority 2 finds the winner.
		s.log.Warn("identity insert raced, re-resolving",
			slog.String("provider", providerName))
		user, err = s.ResolveUser(ctx, providerName, identity.ExternalID, identity.Email, identity.DisplayName, "")
		if err == nil {
			err = s.LinkAccount(ctx, user.ID, providerName, identity.ExternalID, bundle.AccessToken, bundle.RefreshToken, bundle.Scopes)
		}
	}
	if err != nil {
		metrics.OAuthLogins.WithLabelValues(providerName, "link_failed").Inc()
		return nil, err
	}

	// A provider avatar fills an empty profile picture but never replaces one
	if identity.AvatarURL != nil && user.AvatarURL == nil {
		user.AvatarURL = identity.AvatarURL
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.log.Warn("failed to store provider avatar", slog.String("error", err.Error()))
		}
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.log.Warn("failed to update last login", slog.String("error", err.Error()))
	}

	token, expiresAt, err := s.jwtManager.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to mint session token: %w", err)
	}

	metrics.OAuthLogins.WithLabelValues(providerName, "success").Inc()
	s.log.Info("oauth login complete",
		slog.String("provider", providerName),
		slog.String("user_id", user.ID))

	return &CallbackResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveUser decides which local user a provider identity belongs to. It
// never fails to produce a user: creation is the last resort. Priority, first
// match wins:
//
//  1. linkedUserID resolves to an existing user (adding a provider to a
//     logged-in account)
//  2. an identity link already exists for (provider, externalID)
//  3. a real email matches an existing user
//  4. the email matches a user who already has other identity links
//     (cross-linking a second provider onto an OAuth-created account)
//  5. create a new user, synthesizing email and name when absent
//
// The ordering prevents duplicate users when one person logs in through
// different providers, and never overwrites an existing user's email/name.
func (s *OAuthService) ResolveUser(ctx context.Context, provider, externalID string, email *string, name, linkedUserID string) (*entities.User, error) {
	// Priority 1: explicitly linked user
	if linkedUserID != "" {
		user, err := s.userRepo.GetByID(ctx, linkedUserID)
		if err == nil {
			s.log.Info("resolved via linked user id",
				slog.String("provider", provider),
				slog.String("user_id", linkedUserID))
			return user, nil
		}
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
		s.log.Warn("linked user id not found, continuing resolution",
			slog.String("user_id", linkedUserID))
	}

	// Priority 2: the identity link already exists (repeat login)
	existing, err := s.identityRepo.GetByProviderAndExternalID(ctx, provider, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		user, err := s.userRepo.GetByID(ctx, existing.UserID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
	}

	// Priority 3: a real email matching an existing user
	if email != nil && IsRealEmail(*email) {
		user, err := s.userRepo.GetByEmail(ctx, *email)
		if err == nil {
			s.log.Info("resolved via real email", slog.String("provider", provider))
			return user, nil
		}
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
	}

	// Priority 4: cross-linking through another provider's identity
	if email != nil && strings.Contains(*email, "@") {
		userID, err := s.identityRepo.FindUserIDByIdentityEmail(ctx, *email)
		if err != nil {
			return nil, err
		}
		if userID != "" {
			user, err := s.userRepo.GetByID(ctx, userID)
			if err == nil {
				s.log.Info("resolved via cross-linking", slog.String("provider", provider))
				return user, nil
			}
			if !errors.Is(err, repositories.ErrUserNotFound) {
				return nil, err
			}
		}
	}

	// Priority 5: create, synthesizing missing fields
	newEmail := ""
	if email != nil {
		newEmail = *email
	}
	if newEmail == "" {
		newEmail = fmt.Sprintf("%s_%s@%s", provider, externalID, SynthesizedDomain)
	}
	if name == "" {
		short := externalID
		if len(short) > 8 {
			short = short[:8]
		}
		name = fmt.Sprintf("%s User %s", titleCase(provider), short)
	}

	user := &entities.User{
		Email:       newEmail,
		DisplayName: name,
		Role:        entities.RoleUser,
		IsActive:    true,
	}

	s.log.Info("creating user for oauth login",
		slog.String("provider", provider),
		slog.String("external_id", externalID))

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			// Lost a creation race on the email; the winner is our user
			return s.userRepo.GetByEmail(ctx, newEmail)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersCreated.WithLabelValues("oauth").Inc()
	return user, nil
}

// LinkAccount creates or refreshes the identity link for a user. Idempotent:
// repeat calls with the same arguments leave exactly one row. The access
// token is always overwritten; the refresh token only when a new one was
// supplied, so a provider omitting it on re-auth never wipes a stored one;
// scopes only when supplied.
func (s *OAuthService) LinkAccount(ctx context.Context, userID, provider, externalID, accessToken string, refreshToken *string, scopes []string) error {
	existing, err := s.identityRepo.GetByUserProviderExternalID(ctx, userID, provider, externalID)
	if err != nil {
		return err
	}

	if existing != nil {
		return s.identityRepo.UpdateCredentials(ctx, existing.IdentityID, accessToken, refreshToken, scopes)
	}

	now := time.Now()
	identity := &entities.Identity{
		UserID:       userID,
		Provider:     provider,
		ExternalID:   externalID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scopes:       pq.StringArray(scopes),
		CreatedAt:    now,
		LastLoginAt:  &now,
	}
	return s.identityRepo.Create(ctx, identity)
}

// Unlink removes a provider link from a user's account
func (s *OAuthService) Unlink(ctx context.Context, userID, provider, externalID string) error {
	identity, err := s.identityRepo.GetByUserProviderExternalID(ctx, userID, provider, externalID)
	if err != nil {
		return err
	}
	if identity == nil {
		return repositories.ErrIdentityNotFound
	}
	return s.identityRepo.Delete(ctx, identity.IdentityID)
}

// HandleDeauthorize removes the identity link when a provider reports the
// user revoked access. Missing links are fine; providers retry webhooks.
func (s *OAuthService) HandleDeauthorize(ctx context.Context, provider, externalID string) error {
	s.log.Info("provider deauthorization",
		slog.String("provider", provider),
		slog.String("external_id", externalID))
	return s.identityRepo.DeleteByProviderAndExternalID(ctx, provider, externalID)
}

// ListLinkedAccounts returns the identity links for a user
func (s *OAuthService) ListLinkedAccounts(ctx context.Context, userID string) ([]*entities.Identity, error) {
	return s.identityRepo.ListByUserID(ctx, userID)
}

// IsRealEmail reports whether an email is a genuine user address rather
// than one synthesized from provider data. Synthesized addresses start with
// a provider prefix or end in an app-owned domain.
func IsRealEmail(email string) bool {
	if !strings.Contains(email, "@") {
		return false
	}
	for _, prefix := range providerPrefixes {
		if strings.HasPrefix(email, prefix) {
			return false
		}
	}
	if strings.HasSuffix(email, "@"+SynthesizedDomain) || strings.HasSuffix(email, "@"+legacySynthesizedDomain) {
		return false
	}
	return true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
