package web

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"together/internal/api"
	"together/internal/pageutil"

	"github.com/go-chi/chi/v5/middleware"
)

// newProxy forwards /api/* to the backend with the caller's token as a
// bearer header. A 401 on a page navigation becomes a redirect to /login.
func (s *Server) newProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if token := tokenFromRequest(pr.In); token != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+token)
			}
			if id := middleware.GetReqID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(api.HeaderRequestID, id)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode != http.StatusUnauthorized || !acceptsHTML(resp.Request) {
				return nil
			}
			s.logger.Info("backend rejected session, redirecting to login", "path", resp.Request.URL.Path)
			resp.Body.Close()

			flash := pageutil.NewFlash(pageutil.FlashError, SessionExpiredText, s.cfg.FlashTTL)
			resp.StatusCode = http.StatusSeeOther
			resp.Status = "303 See Other"
			resp.Header = http.Header{}
			resp.Header.Set("Location", "/login")
			resp.Header.Add("Set-Cookie", flash.Cookie().String())
			resp.Body = http.NoBody
			resp.ContentLength = 0
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Error("backend unavailable", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
		},
	}
}

// acceptsHTML reports whether r is a browser navigation rather than a
// script's fetch.
func acceptsHTML(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
