// Command together runs the Together tools: database setup, the terminal
// quiz, the relationship metrics views and the web front.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"together/internal/api"
	"together/internal/auth"
	"together/internal/config"
	"together/internal/metrics"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := initLogger(cfg)

	rootCmd := &cobra.Command{
		Use:           "together",
		Short:         "Together - couples app tooling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newInitDBCmd(cfg, logger))
	rootCmd.AddCommand(newQuizCmd(cfg, logger))
	rootCmd.AddCommand(newInsightsCmd(cfg, logger))
	rootCmd.AddCommand(newMetricsCmd(cfg, logger))
	rootCmd.AddCommand(newWebCmd(cfg, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initLogger writes to stderr so the interactive commands keep stdout.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveToken returns the configured bearer token and warns when it has
// already expired.
func resolveToken(cfg *config.Config, logger *slog.Logger) (string, error) {
	token, err := auth.Resolve(cfg.APIToken, cfg.JWTSecret, cfg.UserID, cfg.TokenTTL)
	if err != nil {
		return "", err
	}
	if subject, expiresAt, err := auth.Inspect(token); err == nil {
		if auth.Expired(expiresAt, time.Now()) {
			logger.Warn("token has expired", "subject", subject, "expired_at", expiresAt)
		} else {
			logger.Debug("using token", "subject", subject, "expires_at", expiresAt)
		}
	}
	return token, nil
}

func newAPIClient(cfg *config.Config, token string, logger *slog.Logger) (*api.Client, error) {
	return api.New(cfg.APIURL, token,
		api.WithHTTPClient(api.NewHTTPClient(cfg.RequestTimeout)),
		api.WithRateLimit(cfg.APIRateLimit, 2),
		api.WithLogger(logger),
	)
}

// sessionExpired turns a rejected token into the message the user acts on.
func sessionExpired(cfg *config.Config, err error) error {
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, metrics.ErrAuthentication) {
		return fmt.Errorf("session expired, log in at http://localhost:%d/login", cfg.WebPort)
	}
	return err
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
