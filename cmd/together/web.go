package main

import (
	"log/slog"

	"together/internal/config"
	"together/internal/metrics"
	"together/internal/web"

	"github.com/spf13/cobra"
)

func newWebCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the quiz and insights pages and the /api proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := cfg.Location()
			if err != nil {
				logger.Warn("using local time", "error", err)
			}
			window, err := metrics.ParseWindow(cfg.MetricsWindow)
			if err != nil {
				return err
			}

			srv, err := web.New(web.Config{
				APIURL:          cfg.APIURL,
				Port:            port,
				Location:        loc,
				FlashTTL:        cfg.FlashTimeout,
				RequestTimeout:  cfg.RequestTimeout,
				AllowedOrigins:  cfg.CORSAllowedOrigins,
				PartnerID:       cfg.PartnerID,
				MetricsWindow:   window,
				MetricsRefresh:  cfg.MetricsPollInterval,
				PollInterval:    cfg.QuizPollInterval,
				PollTimeout:     cfg.QuizPollTimeout,
				ShutdownTimeout: cfg.ShutdownTimeout,
			}, logger)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.WebPort, "Port to listen on")
	return cmd
}
