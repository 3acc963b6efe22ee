package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", "test-token", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []string{"", "localhost:5000", "ftp://host/api", "://bad"}
	for _, raw := range tests {
		if _, err := New(raw, "t"); err == nil {
			t.Errorf("New(%q) expected error, got nil", raw)
		}
	}
}

func TestClient_Get_SendsHeaders(t *testing.T) {
	var gotAuth, gotID, gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get(HeaderRequestID)
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"score":10}`))
	})

	var out Score
	query := map[string][]string{"minutes": {"5"}}
	if err := c.Get(context.Background(), "quiz/score", query, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotID == "" {
		t.Error("expected X-Request-ID header")
	}
	if gotPath != "/api/quiz/score" {
		t.Errorf("expected path /api/quiz/score, got %s", gotPath)
	}
	if gotQuery != "minutes=5" {
		t.Errorf("expected query minutes=5, got %s", gotQuery)
	}
	if out.Score != 10 {
		t.Errorf("expected score 10, got %d", out.Score)
	}
}

func TestClient_Post_EncodesBody(t *testing.T) {
	var got answerRequest
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	})

	body := answerRequest{QuestionID: 7, Answer: "Beach"}
	if err := c.Post(context.Background(), "quiz/answer", body, nil); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", contentType)
	}
	if got != body {
		t.Errorf("expected body %+v, got %+v", body, got)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"msg":"Token has expired"}`))
	})

	for _, strict := range []bool{true, false} {
		var out Score
		err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "quiz/score"}, strict, &out)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("strict=%v: expected ErrUnauthorized, got %v", strict, err)
		}
	}
}

func TestClient_StrictStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"You need a partner to use this feature"}`))
	})

	var out Status
	err := c.Get(context.Background(), "quiz/status", nil, &out)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest {
		t.Errorf("expected code 400, got %d", se.Code)
	}
	if se.Message != "You need a partner to use this feature" {
		t.Errorf("unexpected message %q", se.Message)
	}
}

func TestClient_LenientDecodesErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"No active batch"}`))
	})

	var out Question
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "quiz/question"}, false, &out)
	if err != nil {
		t.Fatalf("expected no error in lenient mode, got %v", err)
	}
	if out.Error != "No active batch" {
		t.Errorf("expected decoded error field, got %q", out.Error)
	}
}

func TestClient_DecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	var out Score
	if err := c.Get(context.Background(), "quiz/score", nil, &out); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	err := c.Get(context.Background(), "quiz/batch", nil, &Batch{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected a 404 StatusError, got %v", err)
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, WithRateLimit(0.001, 1))

	if err := c.Get(context.Background(), "quiz/score", nil, nil); err != nil {
		t.Fatalf("first request should pass the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Get(ctx, "quiz/score", nil, nil); err == nil {
		t.Fatal("expected second request to be throttled and cancelled")
	}
}
