package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/peerchat/chat-store/internal/config"
	registrymigrate "github.com/peerchat/chat-store/internal/registry/migrate"

	// Import plugins to trigger init() registration of their migrators.
	_ "github.com/peerchat/chat-store/internal/plugin/store/sqlite"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-path",
				Sources: cli.EnvVars("CHAT_STORE_DB_PATH"),
				Usage:   "Path of the embedded SQLite database file",
				Value:   "chat-store.db",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			cfg.DBPath = cmd.String("db-path")
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...")
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
