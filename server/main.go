package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/config"
	"github.com/veylhq/veyl/internal/domain/services"
	"github.com/veylhq/veyl/internal/infrastructure/database/postgres"
	"github.com/veylhq/veyl/internal/infrastructure/social"
	"github.com/veylhq/veyl/internal/oauth"
	"github.com/veylhq/veyl/internal/pkg/idgen"
	"github.com/veylhq/veyl/internal/pkg/logger"
	"github.com/veylhq/veyl/migrations"
	"github.com/veylhq/veyl/server/internal/http/handlers"
	"github.com/veylhq/veyl/server/internal/http/middleware"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		forceVersion  int
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Veyl API server",
		Long:  "The HTTP API server for the Veyl social monitoring service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath, forceVersion)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	cmd.AddCommand(newUserCommand())

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(globalLogger)
	return nil
}

func runServer(configPath string, forceVersion int) error {
	log := slog.Default().With("component", "server")
	log.Info("Starting server initialization")

	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info("Loaded OAuth providers", "count", len(cfg.Auth.Providers))
	for _, p := range cfg.Auth.Providers {
		log.Info("OAuth provider configured", "name", p.Name, "client_id", p.ClientID)
	}

	// Connect to PostgreSQL with retries (for Kubernetes startup)
	log.Info("Initializing PostgreSQL database",
		"user", cfg.Database.Postgres.User,
		"host", cfg.Database.Postgres.Host,
		"database", cfg.Database.Postgres.Database)

	pgConn, err := connectWithRetry(cfg.Database.Postgres.ConnectionString(), log)
	if err != nil {
		return err
	}
	defer pgConn.Close()

	if forceVersion >= 0 {
		log.Info("Force setting migration version", "version", forceVersion)
		if err := pgConn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("Migration version forced, exiting", "version", forceVersion)
		return nil
	}

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(pgConn.DB)
	identityRepo := postgres.NewIdentityRepository(pgConn.DB)
	platformRepo := postgres.NewPlatformRepository(pgConn.DB)
	postRepo := postgres.NewPostRepository(pgConn.DB)
	hashtagRepo := postgres.NewHashtagRepository(pgConn.DB)
	projectRepo := postgres.NewProjectRepository(pgConn.DB)
	analyticsRepo := postgres.NewAnalyticsRepository(pgConn.DB)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Lifetime)
	registry := oauth.BuildRegistry(&cfg.Auth)

	// Platform API clients; absent credentials disable the remote paths
	ctx := context.Background()
	instagramPlatform, err := platformRepo.Ensure(ctx, "instagram")
	if err != nil {
		return fmt.Errorf("failed to ensure instagram platform: %w", err)
	}
	tiktokPlatform, err := platformRepo.Ensure(ctx, "tiktok")
	if err != nil {
		return fmt.Errorf("failed to ensure tiktok platform: %w", err)
	}

	var embedClient services.EmbedClient
	var metaMedia services.HashtagMediaClient
	if cfg.Social.Meta.AppID != "" && cfg.Social.Meta.AppSecret != "" {
		metaClient := social.NewMetaClient(
			cfg.Social.Meta.AppID, cfg.Social.Meta.AppSecret,
			cfg.Social.Meta.IGUserID, instagramPlatform.ID)
		embedClient = metaClient
		metaMedia = metaClient
	} else {
		log.Warn("Meta app credentials not configured; oEmbed refresh and hashtag search disabled")
	}
	tiktokMedia := social.NewTikTokClient(tiktokPlatform.ID)

	// Services
	reconcileService := services.NewReconcileService(postRepo, hashtagRepo)
	oauthService := services.NewOAuthService(userRepo, identityRepo, registry, jwtManager)
	userService := services.NewUserService(userRepo, jwtManager)
	projectService := services.NewProjectService(projectRepo, hashtagRepo, platformRepo, postRepo, reconcileService)
	postService := services.NewPostService(postRepo, platformRepo, projectRepo, hashtagRepo, reconcileService, embedClient)

	// Session store for the OAuth state anti-replay cookie
	cookieKey := cfg.Auth.SessionCookieKey
	if cookieKey == "" {
		cookieKey = cfg.Auth.StateSecret
	}
	store := sessions.NewCookieStore([]byte(cookieKey))

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, oauthService)
	oauthHandler := handlers.NewOAuthHandler(oauthService, store, cfg.Frontend.BaseURL)
	userHandler := handlers.NewUserHandler(userService)
	projectHandler := handlers.NewProjectHandler(projectService, postService)
	hashtagHandler := handlers.NewHashtagHandler(hashtagRepo, platformRepo, reconcileService)
	postHandler := handlers.NewPostHandler(postService, platformRepo, identityRepo, metaMedia, tiktokMedia)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsRepo, platformRepo)
	webhookHandler := handlers.NewWebhookHandler(oauthService, cfg.Auth.WebhookVerifyToken, cfg.Social.Meta.AppSecret)
	healthHandler := handlers.NewHealthHandler(pgConn.DB)

	router := buildRouter(jwtManager, authHandler, oauthHandler, userHandler,
		projectHandler, hashtagHandler, postHandler, analyticsHandler, webhookHandler, healthHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

func connectWithRetry(connString string, log *slog.Logger) (*postgres.Connection, error) {
	maxRetries := 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		pgConn, err := postgres.NewConnection(connString)
		if err == nil {
			log.Info("Successfully connected to PostgreSQL")
			return pgConn, nil
		}

		if i < maxRetries-1 {
			log.Warn("Failed to connect to PostgreSQL",
				"attempt", i+1,
				"max_retries", maxRetries,
				"error", err,
				"retry_delay", retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		} else {
			return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}
	}
	return nil, fmt.Errorf("unreachable")
}

func buildRouter(
	jwtManager *auth.JWTManager,
	authHandler *handlers.AuthHandler,
	oauthHandler *handlers.OAuthHandler,
	userHandler *handlers.UserHandler,
	projectHandler *handlers.ProjectHandler,
	hashtagHandler *handlers.HashtagHandler,
	postHandler *handlers.PostHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Metrics)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler.Live).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthHandler.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public auth surface
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/{provider}/start", oauthHandler.Start).Methods(http.MethodGet)
	api.HandleFunc("/auth/{provider}/callback", oauthHandler.Callback).Methods(http.MethodGet)

	// Meta webhooks (authenticated by verify token / signed request)
	api.HandleFunc("/webhooks/meta", webhookHandler.Verify).Methods(http.MethodGet)
	api.HandleFunc("/webhooks/meta/deauthorize", webhookHandler.Deauthorize).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/meta/data-deletion", webhookHandler.DataDeletion).Methods(http.MethodPost)

	// Protected surface
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(jwtManager))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/auth/accounts", oauthHandler.LinkedAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/auth/{provider}/accounts/{external_id}", oauthHandler.Unlink).Methods(http.MethodDelete)

	protected.HandleFunc("/users/me", userHandler.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/users/me", userHandler.UpdateProfile).Methods(http.MethodPatch)

	protected.HandleFunc("/projects", projectHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/projects", projectHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}", projectHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}", projectHandler.Update).Methods(http.MethodPatch)
	protected.HandleFunc("/projects/{id}", projectHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/projects/{id}/hashtags", projectHandler.ListHashtags).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}/hashtags", projectHandler.AttachHashtag).Methods(http.MethodPost)
	protected.HandleFunc("/projects/{id}/hashtags/{link_id}", projectHandler.DetachHashtag).Methods(http.MethodDelete)
	protected.HandleFunc("/projects/{id}/creators", projectHandler.ListCreators).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}/creators", projectHandler.AttachCreator).Methods(http.MethodPost)
	protected.HandleFunc("/projects/{id}/creators/{link_id}", projectHandler.DetachCreator).Methods(http.MethodDelete)
	protected.HandleFunc("/projects/{id}/posts", projectHandler.ListPosts).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{id}/refresh", projectHandler.Refresh).Methods(http.MethodPost)

	protected.HandleFunc("/hashtags", hashtagHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/hashtags/{id}", hashtagHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/hashtags/{id}/link-posts", hashtagHandler.LinkPosts).Methods(http.MethodPost)

	protected.HandleFunc("/posts", postHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/posts", postHandler.Ingest).Methods(http.MethodPost)
	protected.HandleFunc("/posts/search", postHandler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/posts/{id}", postHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/media/{platform}/hashtag/{tag}", postHandler.HashtagMedia).Methods(http.MethodGet)

	protected.HandleFunc("/analytics/trending", analyticsHandler.Trending).Methods(http.MethodGet)
	protected.HandleFunc("/analytics/hashtags/stats", analyticsHandler.HashtagStats).Methods(http.MethodGet)

	return router
}
