package cli

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helmcode/crewboard/internal/api"
	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/metrics"
	"github.com/helmcode/crewboard/internal/models"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustConfig(cmd)
			if addr != "" {
				cfg.Server.ListenAddr = addr
			}

			m := metrics.New()
			db, err := openDB(cfg, models.QueryCounter{}, m)
			if err != nil {
				return err
			}
			defer models.Close(db)

			var pub events.Publisher = events.Nop{}
			if cfg.NATS.URL != "" {
				np, err := connectNATS(cmd, cfg)
				if err != nil {
					return err
				}
				pub = np
			} else {
				slog.Info("nats not configured, events are discarded")
			}
			defer pub.Close()

			srv := api.NewServer(db, api.Options{
				Publisher:    pub,
				Metrics:      m,
				AllowOrigins: strings.Join(cfg.Server.CORSAllowOrigins, ","),
			})

			// Start server in background.
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(cfg.Server.ListenAddr)
			}()

			// Wait for shutdown signal.
			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			slog.Info("shutting down crewboard")
			return srv.Shutdown()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.listen_addr)")
	return cmd
}
