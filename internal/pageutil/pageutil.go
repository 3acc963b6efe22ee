// Package pageutil holds the small helpers every rendered page uses:
// one-shot flash messages, active navigation and local timestamps.
package pageutil

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"
)

const (
	FlashCookie  = "together_flash"
	DefaultFlash = 5 * time.Second

	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// Flash is a message shown once on the next page and hidden after TTL.
type Flash struct {
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

func NewFlash(category, message string, ttl time.Duration) Flash {
	if ttl <= 0 {
		ttl = DefaultFlash
	}
	return Flash{Category: category, Message: message, CreatedAt: time.Now(), TTL: ttl}
}

// Expired reports whether the flash should no longer be shown at now.
func (f Flash) Expired(now time.Time) bool {
	return !now.Before(f.CreatedAt.Add(f.TTL))
}

// DismissAfterMillis is the delay for the page script that fades the flash.
func (f Flash) DismissAfterMillis() int64 {
	return f.TTL.Milliseconds()
}

// Cookie encodes f as the flash cookie. It expires with the flash.
func (f Flash) Cookie() *http.Cookie {
	data, _ := json.Marshal(f)
	return &http.Cookie{
		Name:     FlashCookie,
		Value:    base64.URLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   int(f.TTL.Round(time.Second) / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetFlash stores f for the next request.
func SetFlash(w http.ResponseWriter, f Flash) {
	http.SetCookie(w, f.Cookie())
}

// PopFlash returns the pending flash, if any and not expired, and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request) (*Flash, bool) {
	c, err := r.Cookie(FlashCookie)
	if err != nil {
		return nil, false
	}
	http.SetCookie(w, &http.Cookie{Name: FlashCookie, Value: "", Path: "/", MaxAge: -1})

	data, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil, false
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil || f.Message == "" {
		return nil, false
	}
	if f.Expired(time.Now()) {
		return nil, false
	}
	return &f, true
}

type NavLink struct {
	Href   string
	Label  string
	Active bool
}

// IsActive reports whether href is exactly the current path.
func IsActive(href, currentPath string) bool {
	return href == currentPath
}

// NavLinks returns a copy of links with Active set on the current one.
func NavLinks(links []NavLink, currentPath string) []NavLink {
	out := make([]NavLink, len(links))
	for i, l := range links {
		l.Active = IsActive(l.Href, currentPath)
		out[i] = l
	}
	return out
}

// LocalTimeLayout is the numeric date and time form used on every page.
const LocalTimeLayout = "01/02/2006, 03:04:05 PM"

var utcLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// LocalTime renders a UTC timestamp in loc. Empty input renders empty and
// input that does not parse is returned unchanged.
func LocalTime(utc string, loc *time.Location) string {
	utc = strings.TrimSpace(utc)
	if utc == "" {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range utcLayouts {
		if t, err := time.ParseInLocation(layout, utc, time.UTC); err == nil {
			return t.In(loc).Format(LocalTimeLayout)
		}
	}
	return utc
}

// FuncMap exposes the helpers to templates.
func FuncMap(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"localtime": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				if t.IsZero() {
					return ""
				}
				return LocalTime(t.UTC().Format(time.RFC3339Nano), loc)
			case string:
				return LocalTime(t, loc)
			default:
				return ""
			}
		},
		"isActive": IsActive,
	}
}
