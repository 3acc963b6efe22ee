package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"together/internal/auth"
	"together/internal/pageutil"
	"together/internal/quiz"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, backend http.Handler, opts ...func(*Config)) http.Handler {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := Config{
		APIURL:         srv.URL + "/api",
		Location:       time.UTC,
		FlashTTL:       5 * time.Second,
		AllowedOrigins: []string{"https://app.example"},
		PartnerID:      "p1",
		PollInterval:   3 * time.Second,
		PollTimeout:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.Routes()
}

func do(t *testing.T, h http.Handler, req *http.Request) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "opaque-token"})
	return req
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// flashOf decodes the flash cookie a response sets.
func flashOf(t *testing.T, resp *http.Response) pageutil.Flash {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name != pageutil.FlashCookie {
			continue
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		f, ok := pageutil.PopFlash(httptest.NewRecorder(), req)
		if !ok {
			t.Fatal("flash cookie could not be decoded")
		}
		return *f
	}
	t.Fatal("expected a flash cookie")
	return pageutil.Flash{}
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func quizBackend(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/quiz/score", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer opaque-token" {
			t.Errorf("expected bearer token from cookie, got %q", got)
		}
		w.Write([]byte(`{"score":50,"total_answered":2,"matches":1}`))
	})
	mux.HandleFunc("GET /api/quiz/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"has_partner":true,"has_active_batch":true,"batch_info":{"id":"b1"}}`))
	})
	mux.HandleFunc("GET /api/quiz/batch", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"batch_id":"b1","total_questions":5}`))
	})
	mux.HandleFunc("GET /api/quiz/question", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"question":"Favorite season?","options":["Summer","Winter"],"batch_progress":{"current":2,"total":5}}`))
	})
	return mux
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, http.NewServeMux())

	resp := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), `"status":"ok"`) {
		t.Error("expected ok status")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestRequireToken(t *testing.T) {
	h := newTestServer(t, http.NewServeMux())

	resp := do(t, h, httptest.NewRequest(http.MethodGet, "/quiz", nil))
	expectRedirect(t, resp, "/login")
	if f := flashOf(t, resp); f.Message != LoginRequiredText {
		t.Errorf("unexpected flash %q", f.Message)
	}

	expired, _, err := auth.Mint("secret", "user-1", -time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/quiz", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: expired})
	resp = do(t, h, req)
	expectRedirect(t, resp, "/login")
	if f := flashOf(t, resp); f.Message != SessionExpiredText {
		t.Errorf("unexpected flash %q", f.Message)
	}
}

func TestLoginPage_ShowsFlash(t *testing.T) {
	h := newTestServer(t, http.NewServeMux())

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(pageutil.NewFlash(pageutil.FlashError, "Session gone", 5*time.Second).Cookie())
	resp := do(t, h, req)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := body(t, resp)
	if !strings.Contains(page, "Session gone") {
		t.Error("expected the flash message on the page")
	}
	if !strings.Contains(page, `data-dismiss-after="5000"`) {
		t.Error("expected the flash to dismiss after 5s")
	}
	if strings.Contains(page, `class="active"`) {
		t.Error("no nav link should be active on /login")
	}
}

func TestQuizPage_ShowsQuestion(t *testing.T) {
	h := newTestServer(t, quizBackend(t))

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := body(t, resp)

	for _, want := range []string{
		"Favorite season?",
		`value="Summer"`,
		`value="Winter"`,
		`name="question_id" value="3"`,
		"Question 2 of 5",
		"Score: <strong>50</strong>",
		"Compatibility: <strong>50%</strong>",
		`href="/quiz" class="active"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestQuizPage_UnauthorizedRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	h := newTestServer(t, mux)

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz", nil)))
	expectRedirect(t, resp, "/login")
	if f := flashOf(t, resp); f.Message != SessionExpiredText {
		t.Errorf("unexpected flash %q", f.Message)
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return authed(req)
}

func TestQuizAnswer_Scored(t *testing.T) {
	mux := quizBackend(t)
	mux.HandleFunc("POST /api/quiz/answer", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(b), `"question_id":3`) || !strings.Contains(string(b), `"answer":"Summer"`) {
			t.Errorf("unexpected answer payload %s", b)
		}
		w.Write([]byte(`{"delta":5,"is_match":true,"new_score":55}`))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, postForm("/quiz/answer", url.Values{"question_id": {"3"}, "answer": {"Summer"}}))
	expectRedirect(t, resp, "/quiz")
	f := flashOf(t, resp)
	if f.Message != "Match! +5" || f.Category != pageutil.FlashSuccess {
		t.Errorf("unexpected flash %+v", f)
	}
}

func TestQuizAnswer_Waiting(t *testing.T) {
	mux := quizBackend(t)
	mux.HandleFunc("POST /api/quiz/answer", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Answer recorded","waiting_for_partner":true}`))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, postForm("/quiz/answer", url.Values{"question_id": {"3"}, "answer": {"Summer"}}))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Path != "/quiz" || loc.Query().Get("waiting") != "3" || loc.Query().Get("since") == "" {
		t.Errorf("unexpected waiting redirect %s", loc)
	}
}

func TestQuizAnswer_BackendError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Question already answered"}`))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, postForm("/quiz/answer", url.Values{"question_id": {"3"}, "answer": {"Summer"}}))
	expectRedirect(t, resp, "/quiz")
	if f := flashOf(t, resp); f.Category != pageutil.FlashError || !strings.HasPrefix(f.Message, "Error: ") {
		t.Errorf("unexpected flash %+v", f)
	}
}

func TestQuizAnswer_MissingFields(t *testing.T) {
	h := newTestServer(t, http.NewServeMux())

	resp := do(t, h, postForm("/quiz/answer", url.Values{"answer": {"Summer"}}))
	expectRedirect(t, resp, "/quiz")
	if f := flashOf(t, resp); f.Message != quiz.NoQuestionText {
		t.Errorf("unexpected flash %q", f.Message)
	}
}

func TestQuizWaiting_PartnerAnswered(t *testing.T) {
	mux := quizBackend(t)
	mux.HandleFunc("GET /api/quiz/check-partner-response", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("question_id") != "3" {
			t.Errorf("unexpected question_id %q", r.URL.Query().Get("question_id"))
		}
		w.Write([]byte(`{"has_answered":true,"is_match":false,"delta":-2,"new_score":48}`))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz?waiting=3", nil)))
	expectRedirect(t, resp, "/quiz")
	if f := flashOf(t, resp); f.Message != "No match: -2" {
		t.Errorf("unexpected flash %q", f.Message)
	}
}

func TestQuizWaiting_StillWaiting(t *testing.T) {
	mux := quizBackend(t)
	mux.HandleFunc("GET /api/quiz/check-partner-response", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"has_answered":false}`))
	})
	h := newTestServer(t, mux)

	since := strconv.FormatInt(time.Now().Unix(), 10)
	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz?waiting=3&since="+since, nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Refresh"); got != "3" {
		t.Errorf("expected a 3s refresh, got %q", got)
	}
	if !strings.Contains(body(t, resp), quiz.WaitingText) {
		t.Error("expected the waiting banner")
	}
}

func TestQuizWaiting_SubSecondInterval(t *testing.T) {
	mux := quizBackend(t)
	mux.HandleFunc("GET /api/quiz/check-partner-response", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"has_answered":false}`))
	})
	h := newTestServer(t, mux, func(c *Config) { c.PollInterval = 400 * time.Millisecond })

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz?waiting=7", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Refresh"); got != "1" {
		t.Errorf("expected a 1s refresh, got %q", got)
	}
}

func TestRefreshSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "1"},
		{400 * time.Millisecond, "1"},
		{1500 * time.Millisecond, "2"},
		{3 * time.Second, "3"},
		{30 * time.Second, "30"},
	}
	for _, tt := range tests {
		if got := refreshSeconds(tt.d); got != tt.want {
			t.Errorf("refreshSeconds(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestQuizWaiting_Timeout(t *testing.T) {
	h := newTestServer(t, quizBackend(t))

	since := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/quiz?waiting=3&since="+since, nil)))
	expectRedirect(t, resp, "/quiz")
	if f := flashOf(t, resp); f.Message != quiz.PartnerTimeoutText {
		t.Errorf("unexpected flash %q", f.Message)
	}
}

func TestQuizNewBatch(t *testing.T) {
	var created atomic.Bool
	mux := quizBackend(t)
	mux.HandleFunc("POST /api/quiz/batch/new", func(w http.ResponseWriter, r *http.Request) {
		created.Store(true)
		w.Write([]byte(`{"batch_id":"b2","total_questions":5}`))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, postForm("/quiz/batch/new", url.Values{}))
	expectRedirect(t, resp, "/quiz")
	if !created.Load() {
		t.Error("expected a new batch to be requested")
	}
}

const metricsReport = `{
	"metrics": {
		"timestamp": "2025-04-20T18:30:05Z",
		"message_count": 12,
		"user_percentage": 60,
		"partner_percentage": 40,
		"avg_response_time": 4.4,
		"message_frequency": 2.5,
		"sentiment_distribution": {"positive": 50, "neutral": 30, "negative": 20}
	},
	"insights": [{"text": "first insight"}, {"text": "second insight"}, {"text": "third insight"}]
}`

func TestInsightsPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ai/relationship-metrics/{partner}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("partner") != "p2" {
			t.Errorf("unexpected partner %q", r.PathValue("partner"))
		}
		if r.URL.Query().Get("hours") != "1" {
			t.Errorf("expected hours=1, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(metricsReport))
	})
	h := newTestServer(t, mux)

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/insights?partner_id=p2&window=1h", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := body(t, resp)

	for _, want := range []string{
		"Last hour Activity",
		"You: 60% | Partner: 40%",
		"4 minutes",
		"2.5 per min",
		"positive 50%",
		"first insight",
		"second insight",
		"04/20/2025, 06:30:05 PM",
		"Updated at",
		`href="/insights" class="active"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(page, "third insight") {
		t.Error("at most two insights should be shown")
	}
	if resp.Header.Get("Refresh") != "" {
		t.Error("no refresh expected without auto-update")
	}
}

func TestInsightsPage_FetchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := newTestServer(t, mux)

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/insights?auto=1", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), "Error fetching real-time metrics") {
		t.Error("expected the fetch error status")
	}
	if resp.Header.Get("Refresh") != "30" {
		t.Errorf("expected a 30s refresh, got %q", resp.Header.Get("Refresh"))
	}
}

func TestInsightsPage_BadWindow(t *testing.T) {
	h := newTestServer(t, http.NewServeMux())

	resp := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/insights?window=soon", nil)))
	expectRedirect(t, resp, "/insights")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New(Config{APIURL: "http://localhost:5000/api", Port: 0, ShutdownTimeout: time.Second}, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_InvalidAPIURL(t *testing.T) {
	if _, err := New(Config{APIURL: "localhost:5000"}, nil); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
