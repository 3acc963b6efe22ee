// Package socketiotest runs an in-process Socket.IO server for tests.
package socketiotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"together/internal/socketio"

	"github.com/gorilla/websocket"
)

// Event is an event received from a client.
type Event struct {
	Name string
	Data json.RawMessage
}

// Conn is the server side of one client connection.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	events  chan Event
	pongs   atomic.Int32
	done    chan struct{}
	once    sync.Once
}

// Events delivers client events in order.
func (c *Conn) Events() <-chan Event { return c.events }

// Done is closed when the client goes away.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Pongs counts pong replies received.
func (c *Conn) Pongs() int { return int(c.pongs.Load()) }

func (c *Conn) writeRaw(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Conn) Emit(event string, payload any) error {
	frame, err := socketio.EncodeEvent("/", event, payload)
	if err != nil {
		return err
	}
	return c.writeRaw(frame)
}

func (c *Conn) Ping() error { return c.writeRaw("2") }

// Disconnect sends a Socket.IO disconnect and drops the websocket.
func (c *Conn) Disconnect() {
	c.writeRaw("41")
	c.Close()
}

// Close drops the websocket without a goodbye.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.ws.Close()
	})
}

// Server accepts Socket.IO clients on /socket.io/.
type Server struct {
	*httptest.Server

	// RejectMessage, when set, refuses every namespace connect with it.
	RejectMessage string

	conns    chan *Conn
	accepted atomic.Int32
}

func NewServer() *Server {
	s := &Server{conns: make(chan *Conn, 16)}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", s.handle)
	s.Server = httptest.NewServer(mux)
	return s
}

// Conns delivers each connection once its namespace connect succeeded.
func (s *Server) Conns() <-chan *Conn { return s.conns }

// Accepted counts successful namespace connects.
func (s *Server) Accepted() int { return int(s.accepted.Load()) }

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Conn{ws: ws, events: make(chan Event, 64), done: make(chan struct{})}
	defer func() {
		c.Close()
		close(c.done)
	}()

	sid := fmt.Sprintf("sid-%d", s.accepted.Load()+1)
	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
	if err := c.writeRaw(open); err != nil {
		return
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(msg)
		switch {
		case frame == "3":
			c.pongs.Add(1)
		case frame == "40":
			if s.RejectMessage != "" {
				c.writeRaw(fmt.Sprintf(`44{"message":%q}`, s.RejectMessage))
				return
			}
			if err := c.writeRaw(fmt.Sprintf(`40{"sid":%q}`, sid)); err != nil {
				return
			}
			s.accepted.Add(1)
			s.conns <- c
		case frame == "41":
			return
		case len(frame) > 2 && frame[:2] == "42":
			p, err := socketio.DecodePacket(frame[1:])
			if err != nil {
				continue
			}
			name, arg, err := p.Event()
			if err != nil {
				continue
			}
			c.events <- Event{Name: name, Data: arg}
		}
	}
}
