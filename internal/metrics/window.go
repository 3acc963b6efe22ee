package metrics

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TimeWindow is the relative span metrics are aggregated over. ParseWindow
// and the presets set exactly one of the fields.
type TimeWindow struct {
	Minutes int `json:"minutes,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Days    int `json:"days,omitempty"`
}

// DefaultWindow is the real-time window.
var DefaultWindow = TimeWindow{Minutes: 5}

type Preset struct {
	Name   string
	Window TimeWindow
}

// Presets are the windows offered in the selector, in display order.
var Presets = []Preset{
	{Name: "Real-time (5 min)", Window: TimeWindow{Minutes: 5}},
	{Name: "Last 15 minutes", Window: TimeWindow{Minutes: 15}},
	{Name: "Last hour", Window: TimeWindow{Hours: 1}},
	{Name: "Last 3 hours", Window: TimeWindow{Hours: 3}},
	{Name: "Today", Window: TimeWindow{Hours: 24}},
	{Name: "Last 3 days", Window: TimeWindow{Days: 3}},
	{Name: "Last week", Window: TimeWindow{Days: 7}},
}

func (w TimeWindow) IsZero() bool {
	return w.Minutes == 0 && w.Hours == 0 && w.Days == 0
}

func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.Days)*24*time.Hour +
		time.Duration(w.Hours)*time.Hour +
		time.Duration(w.Minutes)*time.Minute
}

// Query returns the days/hours/minutes parameters of the metrics endpoint.
// A zero window asks for the default five minutes.
func (w TimeWindow) Query() url.Values {
	q := url.Values{}
	if w.Days > 0 {
		q.Set("days", strconv.Itoa(w.Days))
	}
	if w.Hours > 0 {
		q.Set("hours", strconv.Itoa(w.Hours))
	}
	if w.Minutes > 0 {
		q.Set("minutes", strconv.Itoa(w.Minutes))
	}
	if len(q) == 0 {
		q.Set("minutes", strconv.Itoa(DefaultWindow.Minutes))
	}
	return q
}

// String renders the window compactly, e.g. "15m" or "3d".
func (w TimeWindow) String() string {
	var b strings.Builder
	if w.Days > 0 {
		fmt.Fprintf(&b, "%dd", w.Days)
	}
	if w.Hours > 0 {
		fmt.Fprintf(&b, "%dh", w.Hours)
	}
	if w.Minutes > 0 {
		fmt.Fprintf(&b, "%dm", w.Minutes)
	}
	if b.Len() == 0 {
		return "0m"
	}
	return b.String()
}

// Label is the preset name for w, or "Last <window>" otherwise.
func (w TimeWindow) Label() string {
	for _, p := range Presets {
		if p.Window == w {
			return p.Name
		}
	}
	return "Last " + w.String()
}

// ParseWindow accepts a single-unit window such as "5m", "1h" or "3d".
// Minutes, hours and days are mutually exclusive, so "1h30m" is rejected.
func ParseWindow(s string) (TimeWindow, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if len(in) < 2 {
		return TimeWindow{}, fmt.Errorf("invalid time window %q", s)
	}

	digits, unit := in[:len(in)-1], in[len(in)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return TimeWindow{}, fmt.Errorf("invalid time window %q: use a single unit like 15m, 3h or 7d", s)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("invalid time window %q: %w", s, err)
	}
	if n <= 0 {
		return TimeWindow{}, fmt.Errorf("invalid time window %q: must be positive", s)
	}

	switch unit {
	case 'm':
		return TimeWindow{Minutes: n}, nil
	case 'h':
		return TimeWindow{Hours: n}, nil
	case 'd':
		return TimeWindow{Days: n}, nil
	default:
		return TimeWindow{}, fmt.Errorf("invalid time window %q: unknown unit %q", s, unit)
	}
}
