// Command remorelay stores named infrared signals and replays them through
// a Nature Remo device on the local network.
//
//	remorelay serve --config config.yaml --port 8001
//	remorelay import signals.yaml
//	remorelay migrate status
//	remorelay version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/database"
	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	_ "github.com/nerrad567/remo-relay/migrations"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnv names the config file when --config is not given.
const configEnv = "REMORELAY_CONFIG"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "remorelay",
		Short: "IR signal store and Nature Remo relay",
		Long: `remorelay keeps named infrared signals in SQLite and sends them
to a Nature Remo device through its local HTTP API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file path (default $"+configEnv+", else built-in defaults)")

	root.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// configPath returns the --config flag, falling back to REMORELAY_CONFIG.
// An empty result means defaults plus environment overrides.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv(configEnv)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the configured database without touching the schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openStore opens the database and brings the schema up to date.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())
	return db, nil
}
