// Command server runs the tutogate HTTP server: the platform routes behind
// the authentication, role and ownership gates.
//
// Configuration is read from a YAML file (--config, TUTOGATE_CONFIG or
// ./config.yaml) with TUTOGATE_* environment overrides. JWT_SECRET and PORT
// are honoured for compatibility with existing deployments.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rhuss/tutogate/pkg/auth"
	"github.com/rhuss/tutogate/pkg/auth/redislimit"
	"github.com/rhuss/tutogate/pkg/auth/token"
	"github.com/rhuss/tutogate/pkg/config"
	"github.com/rhuss/tutogate/pkg/logging"
	"github.com/rhuss/tutogate/pkg/storage/memory"
	"github.com/rhuss/tutogate/pkg/storage/postgres"
	transporthttp "github.com/rhuss/tutogate/pkg/transport/http"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Run the tutogate HTTP server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Logging)

	verifier, err := token.NewVerifier(token.Config{
		Secret: []byte(cfg.Auth.Secret),
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	authn, err := auth.NewAuthenticator(auth.Config{
		Verifier:      verifier,
		Users:         store,
		CookieName:    cfg.Auth.CookieName,
		LookupTimeout: cfg.Auth.LookupTimeout,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	limiter, closeLimiter, err := openLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter.Close()

	router, err := transporthttp.NewRouter(transporthttp.RouterConfig{
		Authenticator:  authn,
		Store:          store,
		Limiter:        limiter,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
		LookupTimeout:  cfg.Auth.LookupTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	srv := transporthttp.NewServer(router,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)
	return srv.ListenAndServe()
}

type closableStore interface {
	transporthttp.Store
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return pg, nil

	default:
		mem := memory.New()
		if cfg.Storage.SeedFile != "" {
			seed, err := memory.LoadSeed(cfg.Storage.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seed.Apply(ctx, mem); err != nil {
				return nil, err
			}
			logger.Info("storage seeded", "users", len(seed.Users), "tutorials", len(seed.Tutorials))
		}
		logger.Info("storage enabled", "type", "memory")
		return mem, nil
	}
}

func openLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.RateLimiter, io.Closer, error) {
	rl := cfg.Auth.RateLimit
	if !rl.Enabled {
		return nil, io.NopCloser(nil), nil
	}

	tiers := cfg.RateLimitTiers()
	if rl.Backend == "redis" {
		client, err := redislimit.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("rate limiting enabled", "backend", "redis", "addr", cfg.Redis.Addr, "default_rpm", rl.DefaultRPM)
		return redislimit.New(client, redislimit.Config{Tiers: tiers, DefaultRPM: rl.DefaultRPM}), client, nil
	}

	logger.Info("rate limiting enabled", "backend", "memory", "default_rpm", rl.DefaultRPM)
	return auth.NewInProcessLimiter(tiers, rl.DefaultRPM), io.NopCloser(nil), nil
}
