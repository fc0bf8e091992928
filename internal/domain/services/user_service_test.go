package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veylhq/veyl/internal/auth"
)

func newTestUserService() (*UserService, *fakeUserRepo) {
	users := newFakeUserRepo()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	return NewUserService(users, jwtManager), users
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	registered, err := svc.Register(ctx, "jane@gmail.com", "Jane", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.Token == "" {
		t.Error("expected a session token on register")
	}
	if registered.User.PasswordHash == nil || *registered.User.PasswordHash == "s3cret-pass" {
		t.Error("password must be stored hashed")
	}

	logged, err := svc.Login(ctx, "jane@gmail.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.User.ID != registered.User.ID {
		t.Errorf("login resolved user %s, want %s", logged.User.ID, registered.User.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestUserService()

	if _, err := svc.Register(ctx, "jane@gmail.com", "Jane", "right-pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "jane@gmail.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody@gmail.com", "right-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}

	for _, u := range users.users {
		u.IsActive = false
	}
	if _, err := svc.Login(ctx, "jane@gmail.com", "right-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("inactive account err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	if _, err := svc.Register(ctx, "jane@gmail.com", "Jane", "pass-one"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "jane@gmail.com", "Imposter", "pass-two"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register err = %v, want ErrEmailTaken", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	registered, err := svc.Register(ctx, "jane@gmail.com", "Jane", "pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	name := "Jane D."
	avatar := "https://cdn.test/jane.jpg"
	tz := "Europe/Berlin"
	updated, err := svc.UpdateProfile(ctx, registered.User.ID, ProfileUpdate{
		DisplayName: &name,
		AvatarURL:   &avatar,
		Timezone:    &tz,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayName != "Jane D." {
		t.Errorf("display name = %q", updated.DisplayName)
	}
	if updated.AvatarURL == nil || *updated.AvatarURL != avatar {
		t.Errorf("avatar = %v", updated.AvatarURL)
	}
	if updated.Timezone == nil || *updated.Timezone != tz {
		t.Errorf("timezone = %v", updated.Timezone)
	}
	if updated.Email != "jane@gmail.com" {
		t.Errorf("email changed to %q", updated.Email)
	}
}
