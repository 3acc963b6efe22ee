package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"together/internal/api"
	"together/internal/auth"
	"together/internal/pageutil"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// TokenCookie is the cookie the Together app stores the session token in.
const TokenCookie = "token"

const (
	LoginRequiredText  = "Please log in to continue."
	SessionExpiredText = "Your session has expired. Please log in again."
)

type contextKey string

const tokenKey contextKey = "token"

// requestID makes sure every request carries an X-Request-ID before chi's
// RequestID middleware reads it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(api.HeaderRequestID, id)
		}
		w.Header().Set(api.HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// tokenFromRequest reads the bearer header, then the token cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// requireToken sends visitors without a usable token to the login page.
// Tokens that are not JWTs are passed on and left for the backend to judge.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			s.redirectToLogin(w, r, LoginRequiredText)
			return
		}
		if _, expiresAt, err := auth.Inspect(token); err == nil && auth.Expired(expiresAt, time.Now()) {
			s.redirectToLogin(w, r, SessionExpiredText)
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) flash(w http.ResponseWriter, category, message string) {
	pageutil.SetFlash(w, pageutil.NewFlash(category, message, s.cfg.FlashTTL))
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, message string) {
	s.flash(w, pageutil.FlashError, message)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
