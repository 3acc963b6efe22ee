// Package config loads Together settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting used by the together binary.
type Config struct {
	// Application settings
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Database (MongoDB), only needed by init-db
	MongoURI     string        `env:"MONGODB_URI"`
	DBName       string        `env:"DB_NAME" envDefault:"together"`
	SeedUsers    bool          `env:"SEED_USERS" envDefault:"true"`
	SeedPassword string        `env:"SEED_PASSWORD"`
	InitTimeout  time.Duration `env:"INIT_TIMEOUT" envDefault:"30s"`

	// Backend API
	APIURL         string        `env:"API_URL" envDefault:"http://localhost:5000/api"`
	APIToken       string        `env:"API_TOKEN"`
	JWTSecret      string        `env:"JWT_SECRET"`
	UserID         string        `env:"USER_ID"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	APIRateLimit   float64       `env:"API_RATE_LIMIT" envDefault:"5"`

	// Quiz
	QuizPollInterval   time.Duration `env:"QUIZ_POLL_INTERVAL" envDefault:"3s"`
	QuizPollTimeout    time.Duration `env:"QUIZ_POLL_TIMEOUT" envDefault:"5m"`
	BatchCompleteDelay time.Duration `env:"BATCH_COMPLETE_DELAY" envDefault:"1500ms"`

	// Relationship metrics
	SocketURL              string        `env:"SOCKET_URL" envDefault:"http://localhost:5002"`
	PartnerID              string        `env:"PARTNER_ID"`
	MetricsPollInterval    time.Duration `env:"METRICS_POLL_INTERVAL" envDefault:"30s"`
	MetricsPollMaxFailures int           `env:"METRICS_POLL_MAX_FAILURES" envDefault:"1"`
	SocketMaxReconnects    int           `env:"SOCKET_MAX_RECONNECTS" envDefault:"5"`
	ReconnectBaseDelay     time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"1s"`
	ReconnectMaxDelay      time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`

	// MetricsWindow accepts the same forms as the --window flag, e.g. "1h".
	MetricsWindow string `env:"METRICS_WINDOW" envDefault:"5m"`

	// Web front
	WebPort            int           `env:"WEB_PORT" envDefault:"3000"`
	DisplayTimezone    string        `env:"DISPLAY_TIMEZONE" envDefault:"Local"`
	FlashTimeout       time.Duration `env:"FLASH_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// Sentinel validation errors.
var (
	ErrMissingMongoURI  = errors.New("MONGODB_URI is required")
	ErrMissingToken     = errors.New("API_TOKEN, or JWT_SECRET together with USER_ID, is required")
	ErrMissingPartnerID = errors.New("PARTNER_ID is required")
)

// Location resolves DisplayTimezone, falling back to the local zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.DisplayTimezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

// HasTokenSource reports whether a bearer token can be obtained.
func (c *Config) HasTokenSource() bool {
	return c.APIToken != "" || (c.JWTSecret != "" && c.UserID != "")
}

// ValidateDatabase checks the settings init-db needs.
func (c *Config) ValidateDatabase() error {
	if c.MongoURI == "" {
		return ErrMissingMongoURI
	}
	return nil
}

// ValidateClient checks the settings the API-consuming commands need.
func (c *Config) ValidateClient(needPartner bool) error {
	if !c.HasTokenSource() {
		return ErrMissingToken
	}
	if needPartner && c.PartnerID == "" {
		return ErrMissingPartnerID
	}
	return nil
}

// Load reads .env (if any) and parses environment variables into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; variables may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
