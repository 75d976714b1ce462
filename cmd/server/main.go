// Command server runs the tubescribe HTTP API.
//
// main is the composition root: it reads configuration, builds every
// dependency once and hands them to internal/server. No other package
// constructs collaborators on its own.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sakif/tubescribe/internal/access"
	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/cache"
	"github.com/sakif/tubescribe/internal/config"
	"github.com/sakif/tubescribe/internal/generator"
	"github.com/sakif/tubescribe/internal/generator/openai"
	"github.com/sakif/tubescribe/internal/generator/youtube"
	"github.com/sakif/tubescribe/internal/handler"
	"github.com/sakif/tubescribe/internal/logging"
	"github.com/sakif/tubescribe/internal/metrics"
	"github.com/sakif/tubescribe/internal/repository/sqlstore"
	"github.com/sakif/tubescribe/internal/server"
	"github.com/sakif/tubescribe/internal/service"
	"github.com/sakif/tubescribe/internal/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the tubescribe API server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info().Str("version", version).Msg("starting tubescribe")

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("flushing traces")
		}
	}()

	if cfg.Database.Driver == sqlstore.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	transcriptCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if transcriptCache != nil {
		defer transcriptCache.Close()
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return err
	}

	yt := youtube.New(youtube.Config{Timeout: cfg.YouTube.Timeout, Language: cfg.YouTube.Language})
	var transcripts generator.TranscriptFetcher = yt
	if transcriptCache != nil {
		transcripts = generator.NewCachedTranscripts(yt, transcriptCache, cfg.Cache.TTL, logger)
	}
	writer, err := openai.New(openai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.Model,
		Organization: cfg.OpenAI.Organization,
		Timeout:      cfg.OpenAI.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	accounts := service.NewAccountService(store, store, tokens, auth.NewPasswordService(),
		service.AccountConfig{InviteRequired: cfg.Auth.InviteRequired}, logger)
	blogs := service.NewBlogService(store, yt, transcripts,
		generator.NewLimitedWriter(writer, cfg.OpenAI.MaxConcurrent), logger)
	if m != nil {
		blogs.WithObserver(m)
	}

	handlers := server.Handlers{
		Auth: handler.NewAuthHandler(accounts, logger),
		Blog: handler.NewBlogHandler(blogs, logger),
		Management: handler.NewManagementHandler(
			service.NewUserAdminService(store, store, accounts, logger),
			service.NewInviteService(store, logger),
			service.NewBanService(store, store, logger),
			service.NewStatsService(store),
			logger,
		),
		Health: handler.NewHealthHandler(store, logger),
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MetricsPath:     cfg.Metrics.Path,
		ServiceName:     cfg.Telemetry.ServiceName,
		RateLimit: server.RateLimit{
			Enabled:           cfg.RateLimit.Enabled,
			TokenPerMinute:    cfg.RateLimit.TokenPerMinute,
			GeneratePerMinute: cfg.RateLimit.GeneratePerMinute,
		},
	}, handlers, auth.NewMiddleware(tokens, store, access.DefaultPolicy(), logger), m, logger)

	return srv.Start(ctx)
}

// openCache returns the transcript cache for the configured backend, or
// nil when caching is off.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemory(cfg.Cache.MaxEntries), nil
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
		defer cancel()
		c, err := cache.NewRedis(dialCtx, cache.RedisConfig{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
			Prefix:      cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("transcript cache on redis")
		return c, nil
	default:
		return nil, errors.New("unknown cache backend " + cfg.Cache.Backend)
	}
}
