package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"together/internal/socketio"
)

// Socket events exchanged with the analysis service.
const (
	EventAuthenticate        = "authenticate"
	EventAuthenticated       = "authenticated"
	EventAuthenticationError = "authentication_error"
	EventSubscribe           = "subscribe_metrics"
	EventMetricsUpdate       = "metrics_update"
	EventMetricsError        = "metrics_error"
)

var (
	// ErrAuthentication ends Run: the server rejected the token.
	ErrAuthentication = errors.New("metrics: authentication failed")

	errDisconnected = errors.New("metrics: socket disconnected")
)

// Socket is the connection the subscriber drives. *socketio.Client
// implements it.
type Socket interface {
	On(event string, h socketio.Handler)
	Emit(event string, payload any) error
	Connect(ctx context.Context) error
	Done() <-chan struct{}
	Close() error
}

// Dialer returns a fresh, unconnected Socket for each attempt.
type Dialer func() Socket

// SocketDialer dials serverURL with the Socket.IO client.
func SocketDialer(serverURL string, logger *slog.Logger) Dialer {
	return func() Socket {
		return socketio.New(serverURL, socketio.WithLogger(logger))
	}
}

type authRequest struct {
	Token string `json:"token"`
}

type subscribeRequest struct {
	Token      string     `json:"token"`
	PartnerID  string     `json:"partner_id"`
	TimeWindow TimeWindow `json:"time_window"`
}

type eventError struct {
	Message string `json:"message"`
}

type SubscriberConfig struct {
	Token     string
	PartnerID string
	Window    TimeWindow
	Retry     RetryPolicy
	// Location renders "Updated at" times; nil means time.Local.
	Location *time.Location
}

// Subscriber keeps a metrics subscription open over Socket.IO, reconnecting
// with the retry policy until the context ends or authentication fails.
type Subscriber struct {
	dial    Dialer
	display Display
	logger  *slog.Logger
	cfg     SubscriberConfig

	mu            sync.Mutex
	window        TimeWindow
	socket        Socket
	authenticated bool
}

func NewSubscriber(dial Dialer, display Display, logger *slog.Logger, cfg SubscriberConfig) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window.IsZero() {
		cfg.Window = DefaultWindow
	}
	return &Subscriber{
		dial:    dial,
		display: display,
		logger:  logger,
		cfg:     cfg,
		window:  cfg.Window,
	}
}

// Window returns the selected time window.
func (s *Subscriber) Window() TimeWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow selects w. While authenticated, a changed window is sent as
// exactly one new subscription; otherwise it is used on the next connect.
func (s *Subscriber) SetWindow(w TimeWindow) error {
	if w.IsZero() {
		return fmt.Errorf("metrics: empty time window")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w == s.window {
		return nil
	}
	s.window = w
	if !s.authenticated || s.socket == nil {
		return nil
	}

	s.display.SetStatus(StatusUpdating)
	return s.subscribeLocked(s.socket)
}

func (s *Subscriber) subscribeLocked(sock Socket) error {
	req := subscribeRequest{
		Token:      s.cfg.Token,
		PartnerID:  s.cfg.PartnerID,
		TimeWindow: s.window,
	}
	if err := sock.Emit(EventSubscribe, req); err != nil {
		s.logger.Warn("subscribe failed", "window", s.window.String(), "error", err)
		return err
	}
	s.logger.Info("subscribed to metrics", "window", s.window.String())
	return nil
}

// Run connects and stays subscribed until ctx ends (returns nil), the
// server rejects the token (ErrAuthentication), or the retry policy gives up.
func (s *Subscriber) Run(ctx context.Context) error {
	s.display.SetStatus(StatusDisconnected)

	failures := 0
	for {
		authed, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrAuthentication) {
			return err
		}
		if authed {
			failures = 0
		}
		failures++

		if s.cfg.Retry.Exhausted(failures) {
			s.logger.Error("giving up on metrics socket", "failures", failures, "error", err)
			return fmt.Errorf("metrics: giving up after %d failed attempts: %w", failures, err)
		}

		delay := s.cfg.Retry.Delay(failures)
		s.logger.Info("reconnecting metrics socket", "attempt", failures, "delay", delay, "error", err)
		s.display.SetStatus(StatusReconnecting)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection. It reports whether the connection got as
// far as authentication.
func (s *Subscriber) session(ctx context.Context) (bool, error) {
	sock := s.dial()
	var authed atomic.Bool
	authErr := make(chan error, 1)

	sock.On(socketio.EventConnect, func(json.RawMessage) {
		s.display.SetStatus(StatusConnected)
		if err := sock.Emit(EventAuthenticate, authRequest{Token: s.cfg.Token}); err != nil {
			s.logger.Warn("authenticate emit failed", "error", err)
		}
	})
	sock.On(socketio.EventDisconnect, func(data json.RawMessage) {
		s.mu.Lock()
		s.authenticated = false
		s.mu.Unlock()
		s.logger.Info("metrics socket disconnected", "reason", string(data))
		s.display.SetStatus(StatusDisconnected)
	})
	sock.On(socketio.EventConnectError, func(data json.RawMessage) {
		s.logger.Warn("metrics socket connect error", "data", string(data))
		s.display.SetStatus(StatusConnectError)
	})
	sock.On(EventAuthenticated, func(json.RawMessage) {
		authed.Store(true)
		s.display.SetStatus(StatusAuthed)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.authenticated = true
		s.socket = sock
		s.subscribeLocked(sock)
	})
	sock.On(EventAuthenticationError, func(data json.RawMessage) {
		var e eventError
		json.Unmarshal(data, &e)
		s.logger.Error("metrics authentication failed", "message", e.Message)
		s.display.SetStatus(StatusAuthFailed)
		select {
		case authErr <- fmt.Errorf("%w: %s", ErrAuthentication, e.Message):
		default:
		}
	})
	sock.On(EventMetricsUpdate, func(data json.RawMessage) {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("malformed metrics update", "error", err)
			return
		}
		ts, ok := snap.Time()
		if !ok {
			ts = time.Now()
		}
		s.display.SetStatus(UpdatedAt(ts, s.cfg.Location))
		s.display.Render(snap)
	})
	sock.On(EventMetricsError, func(data json.RawMessage) {
		var e eventError
		json.Unmarshal(data, &e)
		s.logger.Warn("metrics error from server", "message", e.Message)
		s.display.SetStatus(StatusMetricsError)
	})

	if err := sock.Connect(ctx); err != nil {
		s.display.SetStatus(StatusConnectError)
		return false, err
	}
	defer func() {
		s.mu.Lock()
		if s.socket == sock {
			s.socket = nil
			s.authenticated = false
		}
		s.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		sock.Close()
		return authed.Load(), ctx.Err()
	case err := <-authErr:
		sock.Close()
		return false, err
	case <-sock.Done():
		return authed.Load(), errDisconnected
	}
}
