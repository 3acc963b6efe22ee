package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"together/internal/pageutil"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login.html", "quiz.html", "insights.html"}

// navLinks is the site navigation shown on every page.
var navLinks = []pageutil.NavLink{
	{Href: "/quiz", Label: "Quiz"},
	{Href: "/insights", Label: "Insights"},
}

func parsePages(loc *time.Location) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").
			Funcs(pageutil.FuncMap(loc)).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// page is what the layout renders around each page's content.
type page struct {
	Title string
	Nav   []pageutil.NavLink
	Flash *pageutil.Flash
	Now   time.Time
	Data  any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	p := page{
		Title: title,
		Nav:   pageutil.NavLinks(navLinks, r.URL.Path),
		Now:   time.Now(),
		Data:  data,
	}
	if f, ok := pageutil.PopFlash(w, r); ok {
		p.Flash = f
	}

	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
