package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/domain/services"
	"github.com/veylhq/veyl/internal/infrastructure/database/postgres"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/migrations"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Commands for managing users in the Veyl database",
	}

	cmd.AddCommand(newUserCreateCommand())

	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var (
		email      string
		password   string
		name       string
		admin      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Long:  "Create a new user with the specified email and password. Omit --password to be prompted.",
		Example: `  # Create an admin user (prompted for the password)
  server user create --email admin@example.com --name "Admin" --admin

  # Create a regular user
  server user create --email user@example.com --password pass123 --name "Regular User"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createUser(configPath, email, password, name, admin)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&password, "password", "", "User password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "User display name (optional)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.MarkFlagRequired("email")

	return cmd
}

func createUser(configPath, email, password, name string, admin bool) error {
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	pgConn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	defer pgConn.Close()

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pgConn.DB)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Lifetime)
	userService := services.NewUserService(userRepo, jwtManager)

	ctx := context.Background()
	if admin {
		user, err := userService.CreateAdmin(ctx, email, name, password)
		if err != nil {
			return err
		}
		fmt.Printf("Created admin user %s (%s)\n", user.Email, user.ID)
		return nil
	}

	session, err := userService.Register(ctx, email, name, password)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", session.User.Email, session.User.ID)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(passwordBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(passwordBytes) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(passwordBytes), nil
}
