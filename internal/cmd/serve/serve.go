package serve

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/peerchat/chat-store/internal/config"

	// Import all plugins to trigger init() registration
	_ "github.com/peerchat/chat-store/internal/plugin/cache/noop"
	_ "github.com/peerchat/chat-store/internal/plugin/cache/ristretto"
	_ "github.com/peerchat/chat-store/internal/plugin/route/system"
	_ "github.com/peerchat/chat-store/internal/plugin/store/sqlite"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var readHeaderTimeoutSecs int = 5
	var cacheTTLSecs int = 30
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local chat store HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs, &cacheTTLSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.CacheAggregateTTL = time.Duration(cacheTTLSecs) * time.Second
			if err := applyLogLevel(cfg.LogLevel); err != nil {
				return err
			}
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs, cacheTTLSecs *int) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_STORE_PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP listen port",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_STORE_READ_HEADER_TIMEOUT"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.StringFlag{
			Name:        "mode",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_STORE_MODE"),
			Destination: &cfg.Mode,
			Value:       cfg.Mode,
			Usage:       "Runtime mode (prod|testing)",
		},

		// ── Datastore ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-path",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("CHAT_STORE_DB_PATH"),
			Destination: &cfg.DBPath,
			Value:       cfg.DBPath,
			Usage:       "Path of the embedded SQLite database file",
		},
		&cli.BoolFlag{
			Name:        "migrate-at-start",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("CHAT_STORE_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Run schema migrations on startup",
		},
		&cli.IntFlag{
			Name:        "page-size",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("CHAT_STORE_PAGE_SIZE"),
			Destination: &cfg.MessagePageSize,
			Value:       cfg.MessagePageSize,
			Usage:       "Default message page size",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_STORE_CACHE"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Aggregate cache backend (ristretto|none)",
		},
		&cli.IntFlag{
			Name:        "cache-ttl",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_STORE_CACHE_TTL"),
			Destination: cacheTTLSecs,
			Value:       *cacheTTLSecs,
			Usage:       "Aggregate cache TTL in seconds",
		},

		// ── Observability ─────────────────────────────────────────
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Observability:",
			Sources:     cli.EnvVars("CHAT_STORE_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
			Value:       cfg.LogLevel,
			Usage:       "Logging level (debug|info|warn|error)",
		},
		&cli.BoolFlag{
			Name:        "access-log",
			Category:    "Observability:",
			Sources:     cli.EnvVars("CHAT_STORE_ACCESS_LOG"),
			Destination: &cfg.AccessLog,
			Value:       cfg.AccessLog,
			Usage:       "Log every HTTP request",
		},
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Observability:",
			Sources:     cli.EnvVars("CHAT_STORE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Usage:       "Constant labels added to all metrics (key=value,...)",
		},
	}
}

func applyLogLevel(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	server, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
