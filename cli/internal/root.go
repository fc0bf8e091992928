package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/domain/services"
	"github.com/veylhq/veyl/internal/infrastructure/database/postgres"
	"github.com/veylhq/veyl/internal/infrastructure/social"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/logger"
	"github.com/veylhq/veyl/migrations"
)

// Global logging flags
var (
	logLevel   string
	logFormat  string
	configPath string
)

// cliContext holds the wired services commands operate with
type cliContext struct {
	cfg       *config.Config
	conn      *postgres.Connection
	posts     *services.PostService
	reconcile *services.ReconcileService
	hashtags  repositories.HashtagRepository
	platforms repositories.PlatformRepository
	log       *slog.Logger
}

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "veyl",
		Short:         "Operational CLI for the Veyl service",
		Long:          "Maintenance commands for the Veyl social monitoring database: post refresh jobs and hashtag link backfills.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	rootCmd.AddCommand(newRefreshPostsCommand())
	rootCmd.AddCommand(newLinkHashtagCommand())

	return rootCmd
}

func setupLogging() error {
	cfg := logger.Config{
		Level:       logger.ParseLevel(logLevel),
		LogToStderr: true,
		Format:      logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(globalLogger)
	return nil
}

// setup connects to the database and wires the services commands need.
// Callers must Close the returned context.
func setup() (*cliContext, error) {
	if err := idgen.Initialize(2); err != nil {
		return nil, fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	conn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := conn.RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	postRepo := postgres.NewPostRepository(conn.DB)
	hashtagRepo := postgres.NewHashtagRepository(conn.DB)
	platformRepo := postgres.NewPlatformRepository(conn.DB)
	projectRepo := postgres.NewProjectRepository(conn.DB)

	reconcile := services.NewReconcileService(postRepo, hashtagRepo)

	var embed services.EmbedClient
	if cfg.Social.Meta.AppID != "" && cfg.Social.Meta.AppSecret != "" {
		instagram, err := platformRepo.Ensure(context.Background(), "instagram")
		if err != nil {
			conn.Close()
			return nil, err
		}
		embed = social.NewMetaClient(cfg.Social.Meta.AppID, cfg.Social.Meta.AppSecret,
			cfg.Social.Meta.IGUserID, instagram.ID)
	}

	posts := services.NewPostService(postRepo, platformRepo, projectRepo, hashtagRepo, reconcile, embed)

	return &cliContext{
		cfg:       cfg,
		conn:      conn,
		posts:     posts,
		reconcile: reconcile,
		hashtags:  hashtagRepo,
		platforms: platformRepo,
		log:       slog.Default().With("component", "cli"),
	}, nil
}

func (c *cliContext) Close() {
	c.conn.Close()
}
