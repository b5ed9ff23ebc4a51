// Package cli implements the crewboard command line: serve, migrate, seed,
// stats and watch.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/config"
	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
)

func NewRootCmd(version string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "crewboard",
		Short:        "Crewboard: agents, tasks and projects behind a REST API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel()))
			cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (environment variables override it)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// mustConfig returns the config loaded by the root command.
func mustConfig(cmd *cobra.Command) *config.Config {
	cfg, ok := config.From(cmd.Context())
	if !ok {
		panic("crewboard config missing from context")
	}
	return cfg
}

// openDB opens and migrates the configured database.
func openDB(cfg *config.Config, plugins ...gorm.Plugin) (*gorm.DB, error) {
	dbc := cfg.DB()
	dbc.Plugins = plugins
	db, err := models.Open(dbc)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// connectNATS dials the configured broker. It fails when no URL is set.
func connectNATS(cmd *cobra.Command, cfg *config.Config) (*events.NATSPublisher, error) {
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("nats url is not configured (set nats.url or NATS_URL)")
	}
	nc := events.DefaultNATSConfig(cfg.NATS.URL)
	nc.Token = cfg.NATS.Token
	nc.SubjectPrefix = cfg.NATS.SubjectPrefix
	nc.JetStream = cfg.NATS.JetStream

	pub, err := events.ConnectNATS(nc)
	if err != nil {
		return nil, err
	}
	if nc.JetStream {
		if err := pub.EnsureStream(cmd.Context()); err != nil {
			pub.Close()
			return nil, err
		}
	}
	return pub, nil
}
