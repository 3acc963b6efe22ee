// Package web serves the Together pages and proxies the browser's API
// calls to the backend.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"together/internal/api"
	"together/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Config struct {
	APIURL          string
	Port            int
	Location        *time.Location
	FlashTTL        time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
	PartnerID       string
	MetricsWindow   metrics.TimeWindow
	MetricsRefresh  time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg        Config
	logger     *slog.Logger
	apiURL     *url.URL
	httpClient *http.Client
	pages      map[string]*template.Template
	proxy      *httputil.ReverseProxy
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := url.Parse(cfg.APIURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("invalid API URL %q", cfg.APIURL)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = api.ClientTimeout
	}
	if cfg.MetricsWindow.IsZero() {
		cfg.MetricsWindow = metrics.DefaultWindow
	}
	if cfg.MetricsRefresh <= 0 {
		cfg.MetricsRefresh = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	pages, err := parsePages(cfg.Location)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		apiURL:     target,
		httpClient: api.NewHTTPClient(cfg.RequestTimeout),
		pages:      pages,
	}
	s.proxy = s.newProxy(target)
	return s, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/login", s.loginPage)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/quiz", http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/quiz", s.quizPage)
		r.Post("/quiz/answer", s.quizAnswer)
		r.Post("/quiz/batch/new", s.quizNewBatch)
		r.Get("/insights", s.insightsPage)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", api.HeaderRequestID},
			ExposedHeaders:   []string{"Link", api.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Handle("/*", http.StripPrefix("/api", s.proxy))
	})

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("web server starting", "addr", srv.Addr, "api", s.apiURL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("stopping web server", "timeout", s.cfg.ShutdownTimeout)
	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// apiClient builds a backend client for one request's token.
func (s *Server) apiClient(token string) (*api.Client, error) {
	return api.New(s.cfg.APIURL, token,
		api.WithHTTPClient(s.httpClient),
		api.WithLogger(s.logger),
	)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "together-web"})
}
