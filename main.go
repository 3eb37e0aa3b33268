package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/client"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handler"
	"github.com/vidtube/backend/internal/service"
)

// @title vidtube API
// @version 1.0
// @description User accounts, sessions and profile media for vidtube.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vidtube",
		Short:         "vidtube user-account backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before serving")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func serve(ctx context.Context, migrate bool) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		users  service.UserRepository
		pinger handler.Pinger
	)
	switch cfg.Postgres.Driver {
	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory user store, data is lost on restart")
		users = db.NewMemoryUsers()
	default:
		pool, err := openPostgres(ctx, cfg.Postgres, migrate)
		if err != nil {
			return err
		}
		defer pool.Close()
		users = db.NewPostgres(pool)
		pinger = pool
	}

	media, mediaDir, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(users, media, tokens, auth.NewPasswordHasher(cfg.Auth.BcryptCost), cfg.Server.IsProduction())

	router := handler.NewRouter(handler.RouterOptions{
		Service:        authService,
		DB:             pinger,
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MediaDir:       mediaDir,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Postgres.Driver).Str("media", cfg.Media.Driver).Msg("starting vidtube api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, migrate bool) (*pgxpool.Pool, error) {
	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

// newMediaStore returns the configured store and, for local storage, the directory to serve.
func newMediaStore(ctx context.Context, cfg config.MediaConfig) (service.MediaStore, string, error) {
	if cfg.Driver == config.MediaDriverS3 {
		store, err := client.NewS3MediaStore(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "/media"
	}
	store, err := client.NewLocalMediaStore(cfg.LocalDir, baseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.Dir(), nil
}

func loadConfig(ctx context.Context) (config.Config, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Server.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
