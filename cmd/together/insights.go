package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"together/internal/config"
	"together/internal/metrics"

	"github.com/spf13/cobra"
)

type metricsFlags struct {
	partnerID string
	window    string
}

func (f *metricsFlags) register(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&f.partnerID, "partner", "", "Partner id (default PARTNER_ID)")
	cmd.Flags().StringVar(&f.window, "window", cfg.MetricsWindow, "Time window, e.g. 5m, 1h or 3d")
}

// resolve applies the flags over cfg and parses the window.
func (f *metricsFlags) resolve(cfg *config.Config) (metrics.TimeWindow, error) {
	if f.partnerID != "" {
		cfg.PartnerID = f.partnerID
	}
	if err := cfg.ValidateClient(true); err != nil {
		return metrics.TimeWindow{}, err
	}
	return metrics.ParseWindow(f.window)
}

func newInsightsCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var flags metricsFlags

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Stream real-time relationship metrics",
		Long: `Stream real-time relationship metrics over the metrics socket.

Type a new window (for example 15m or 3h) and press enter to switch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := flags.resolve(cfg)
			if err != nil {
				return err
			}
			token, err := resolveToken(cfg, logger)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				logger.Warn("using local time", "error", err)
			}

			sub := metrics.NewSubscriber(
				metrics.SocketDialer(cfg.SocketURL, logger),
				metrics.NewConsoleDisplay(cmd.OutOrStdout()),
				logger,
				metrics.SubscriberConfig{
					Token:     token,
					PartnerID: cfg.PartnerID,
					Window:    window,
					Retry: metrics.RetryPolicy{
						MaxFailures: cfg.SocketMaxReconnects,
						BaseDelay:   cfg.ReconnectBaseDelay,
						MaxDelay:    cfg.ReconnectMaxDelay,
					},
					Location: loc,
				},
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go readWindows(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), sub, logger)

			return sessionExpired(cfg, sub.Run(ctx))
		},
	}

	flags.register(cmd, cfg)
	return cmd
}

// readWindows switches the subscription window for every line typed.
func readWindows(ctx context.Context, in io.Reader, out io.Writer, sub *metrics.Subscriber, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		w, err := metrics.ParseWindow(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if err := sub.SetWindow(w); err != nil {
			logger.Warn("could not change window", "window", line, "error", err)
			continue
		}
		fmt.Fprintf(out, "Window: %s\n", w.Label())
	}
}

func newMetricsCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var flags metricsFlags

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Poll relationship metrics periodically",
		Long: `Poll relationship metrics over HTTP.

Press enter to switch updates off and on, type "q" to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := flags.resolve(cfg)
			if err != nil {
				return err
			}
			token, err := resolveToken(cfg, logger)
			if err != nil {
				return err
			}
			client, err := newAPIClient(cfg, token, logger)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				logger.Warn("using local time", "error", err)
			}

			retry := metrics.DefaultPollerPolicy()
			retry.MaxFailures = cfg.MetricsPollMaxFailures
			poller := metrics.NewPoller(metrics.APIFetcher{Client: client}, metrics.NewConsoleDisplay(cmd.OutOrStdout()), logger, metrics.PollerConfig{
				PartnerID: cfg.PartnerID,
				Window:    window,
				Interval:  cfg.MetricsPollInterval,
				Retry:     retry,
				Location:  loc,
			})

			ctx := cmd.Context()
			poller.Start(ctx)
			defer poller.Stop()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- strings.TrimSpace(scanner.Text()):
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						<-ctx.Done()
						return nil
					}
					if line == "q" || line == "quit" {
						return nil
					}
					poller.Toggle(ctx)
				}
			}
		},
	}

	flags.register(cmd, cfg)
	return cmd
}
