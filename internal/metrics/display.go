package metrics

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Display renders status changes and snapshots. Implementations must be
// safe for concurrent use.
type Display interface {
	SetStatus(Status)
	Render(Snapshot)
}

const NoInsightsText = "No insights available for this time period."

// ConsoleDisplay prints to a terminal.
type ConsoleDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleDisplay(w io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{w: w}
}

func (d *ConsoleDisplay) SetStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "[%s] %s\n", s.Kind, s.Message)
}

func (d *ConsoleDisplay) Render(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.w, FormatSnapshot(s))
}

// FormatSnapshot renders s as a plain-text block.
func FormatSnapshot(s Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Messages:       %d", s.MessageCount)
	if you, partner, ok := s.Breakdown(); ok {
		fmt.Fprintf(&b, " (You: %d%% | Partner: %d%%)", you, partner)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Avg response:   %s\n", s.ResponseTimeText())
	fmt.Fprintf(&b, "Frequency:      %s\n", s.FrequencyText())

	if pos, neu, neg, ok := s.Sentiment(); ok {
		fmt.Fprintf(&b, "Sentiment:      positive %d%% | neutral %d%% | negative %d%%\n", pos, neu, neg)
	} else {
		b.WriteString("Sentiment:      No sentiment data available\n")
	}

	if len(s.Insights) == 0 {
		b.WriteString(NoInsightsText + "\n")
		return b.String()
	}
	b.WriteString("Insights:\n")
	for _, in := range s.Insights {
		kind := in.Type
		if kind == "" {
			kind = "general"
		}
		fmt.Fprintf(&b, "  * [%s] %s\n", kind, in.Text)
		if in.Suggestion != "" {
			fmt.Fprintf(&b, "    %s\n", in.Suggestion)
		}
	}
	return b.String()
}
