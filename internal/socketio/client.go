// Package socketio is a small Socket.IO v5 client speaking Engine.IO v4 over
// a websocket. It supports events on the default namespace; no acks, no binary.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Synthetic events raised by the client itself.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

var (
	ErrClosed         = errors.New("socketio: connection closed")
	ErrNotConnected   = errors.New("socketio: not connected")
	ErrConnectRefused = errors.New("socketio: connection refused by server")

	errClientClose = fmt.Errorf("%w by client", ErrClosed)
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
	writeTimeout        = 10 * time.Second
	handshakeTimeout    = 20 * time.Second
)

// Handler receives an event's first argument, or nil when it has none.
type Handler func(data json.RawMessage)

type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	writeMu sync.Mutex
	conn    *websocket.Conn

	sid       string
	readLimit time.Duration

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns an unconnected client for serverURL, e.g.
// http://localhost:5002. Register handlers with On, then call Connect.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		url:      serverURL,
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL converts an http(s) or ws(s) server URL into the Engine.IO
// websocket endpoint.
func EndpointURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid socket URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid socket URL %q: unsupported scheme", serverURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	} else if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// On registers h for event. Handlers run on the client's read goroutine in
// arrival order.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.RLock()
	hs := c.handlers[event]
	c.mu.RUnlock()
	for _, h := range hs {
		h(data)
	}
}

// Connect performs the Engine.IO and Socket.IO handshakes and starts reading.
// The connect event fires on the read goroutine before any server event.
func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := EndpointURL(c.url)
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(handshakeTimeout)
	}
	conn.SetReadDeadline(deadline)
	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != engineOpen {
		return fmt.Errorf("%w: expected open packet, got %q", ErrMalformedPacket, msg)
	}
	var hs handshake
	if err := json.Unmarshal(msg[1:], &hs); err != nil {
		return fmt.Errorf("%w: open payload: %v", ErrMalformedPacket, err)
	}
	interval := time.Duration(hs.PingInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := time.Duration(hs.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	c.readLimit = interval + timeout

	frame, err := EncodeConnect("", nil)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read connect ack: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		if msg[0] == enginePing {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.TextMessage, []byte{enginePong})
			continue
		}
		if msg[0] != engineMessage {
			continue
		}
		p, err := DecodePacket(string(msg[1:]))
		if err != nil {
			return err
		}
		if !c.sameNamespace(p.Namespace) {
			continue
		}
		switch p.Type {
		case PacketConnect:
			var ack struct {
				SID string `json:"sid"`
			}
			if len(p.Data) > 0 {
				json.Unmarshal(p.Data, &ack)
			}
			c.sid = ack.SID
			return nil
		case PacketConnectError:
			var ce connectError
			json.Unmarshal(p.Data, &ce)
			if ce.Message == "" {
				return ErrConnectRefused
			}
			return fmt.Errorf("%w: %s", ErrConnectRefused, ce.Message)
		}
	}
}

func (c *Client) sameNamespace(ns string) bool {
	return ns == "" || ns == "/"
}

func (c *Client) readLoop(conn *websocket.Conn) {
	var reason error
	defer func() {
		c.shutdown(reason)
		conn.Close()
		msg, _ := json.Marshal(disconnectReason(c.closeErr))
		c.dispatch(EventDisconnect, msg)
	}()

	c.dispatch(EventConnect, nil)

	for {
		conn.SetReadDeadline(time.Now().Add(c.readLimit))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			reason = err
			return
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case enginePing:
			if err := c.write([]byte{enginePong}); err != nil {
				reason = err
				return
			}
		case engineClose:
			reason = ErrClosed
			return
		case engineMessage:
			p, err := DecodePacket(string(msg[1:]))
			if err != nil {
				c.logger.Warn("dropping socket packet", "error", err)
				continue
			}
			if !c.sameNamespace(p.Namespace) {
				continue
			}
			switch p.Type {
			case PacketEvent:
				name, arg, err := p.Event()
				if err != nil {
					c.logger.Warn("dropping socket event", "error", err)
					continue
				}
				c.dispatch(name, arg)
			case PacketDisconnect:
				reason = ErrClosed
				return
			case PacketConnectError:
				c.dispatch(EventConnectError, p.Data)
			}
		}
	}
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, errClientClose):
		return "io client disconnect"
	case err == nil, errors.Is(err, ErrClosed):
		return "io server disconnect"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "transport close"
	default:
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return "ping timeout"
		}
		return "transport error"
	}
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Emit sends event with payload. Safe for concurrent use.
func (c *Client) Emit(event string, payload any) error {
	var frame string
	var err error
	if payload == nil {
		frame, err = EncodeEvent("", event)
	} else {
		frame, err = EncodeEvent("", event, payload)
	}
	if err != nil {
		return err
	}
	return c.write([]byte(frame))
}

// SID returns the Socket.IO session id assigned by the server.
func (c *Client) SID() string { return c.sid }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

func (c *Client) shutdown(reason error) {
	c.closeOnce.Do(func() {
		if reason == nil {
			reason = ErrClosed
		}
		c.closeErr = reason
		close(c.done)
	})
}

// Close sends a disconnect and closes the websocket.
func (c *Client) Close() error {
	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn == nil {
		c.shutdown(errClientClose)
		return nil
	}

	frame := string(engineMessage) + "1"
	c.write([]byte(frame))
	c.shutdown(errClientClose)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	return nil
}
