package socketio_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"together/internal/socketio"
	"together/internal/socketio/socketiotest"
)

func waitConn(t *testing.T, srv *socketiotest.Server) *socketiotest.Conn {
	t.Helper()
	select {
	case c := <-srv.Conns():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
		return nil
	}
}

func waitEvent(t *testing.T, c *socketiotest.Conn) socketiotest.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client event")
		return socketiotest.Event{}
	}
}

func TestClient_ConnectAndEmit(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()

	client := socketio.New(srv.URL)
	connected := make(chan struct{})
	client.On(socketio.EventConnect, func(json.RawMessage) {
		close(connected)
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connect event not fired")
	}
	if client.SID() == "" {
		t.Error("expected a session id")
	}

	conn := waitConn(t, srv)
	if err := client.Emit("authenticate", map[string]string{"token": "abc"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	ev := waitEvent(t, conn)
	if ev.Name != "authenticate" || string(ev.Data) != `{"token":"abc"}` {
		t.Errorf("unexpected event %s %s", ev.Name, ev.Data)
	}
}

func TestClient_ReceivesEvents(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()

	client := socketio.New(srv.URL)
	got := make(chan json.RawMessage, 1)
	client.On("authenticated", func(data json.RawMessage) {
		got <- data
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	conn := waitConn(t, srv)
	conn.Emit("authenticated", map[string]string{"user_id": "u1"})

	select {
	case data := <-got:
		var payload struct {
			UserID string `json:"user_id"`
		}
		json.Unmarshal(data, &payload)
		if payload.UserID != "u1" {
			t.Errorf("expected user_id u1, got %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("authenticated event not delivered")
	}
}

func TestClient_AnswersPing(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()

	client := socketio.New(srv.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	conn := waitConn(t, srv)
	conn.Ping()

	deadline := time.Now().Add(2 * time.Second)
	for conn.Pongs() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.Pongs() != 1 {
		t.Errorf("expected 1 pong, got %d", conn.Pongs())
	}
}

func TestClient_ConnectRefused(t *testing.T) {
	srv := socketiotest.NewServer()
	srv.RejectMessage = "not authorized"
	defer srv.Close()

	client := socketio.New(srv.URL)
	err := client.Connect(context.Background())
	if !errors.Is(err, socketio.ErrConnectRefused) {
		t.Fatalf("expected ErrConnectRefused, got %v", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	srv := socketiotest.NewServer()
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := socketio.New(url).Connect(ctx); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestClient_ServerDisconnect(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()

	client := socketio.New(srv.URL)
	var mu sync.Mutex
	var reason string
	client.On(socketio.EventDisconnect, func(data json.RawMessage) {
		mu.Lock()
		json.Unmarshal(data, &reason)
		mu.Unlock()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitConn(t, srv).Disconnect()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the disconnect")
	}
	if !errors.Is(client.Err(), socketio.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", client.Err())
	}
	if err := client.Emit("late", nil); err == nil {
		t.Error("expected Emit to fail after disconnect")
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if reason != "io server disconnect" {
		t.Errorf("unexpected disconnect reason %q", reason)
	}
}

func TestClient_Close(t *testing.T) {
	srv := socketiotest.NewServer()
	defer srv.Close()

	client := socketio.New(srv.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	conn := waitConn(t, srv)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not see the client leave")
	}
	if client.Err() == nil {
		t.Error("expected Err after Close")
	}
}
