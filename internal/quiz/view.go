package quiz

import (
	"fmt"
	"io"
	"strings"

	"together/internal/api"
)

// View receives everything the session wants shown.
type View interface {
	State(State)
	Stats(Stats)
	Notice(msg string)
	Question(q *api.Question)
	// Options enables or disables the answer controls.
	Options(enabled bool)
	// Result replaces any banner shown for the current question.
	Result(Result)
	NextControl(visible bool)
	Error(msg string)
	BatchComplete(Summary)
}

// Summary is the batch completion screen.
type Summary struct {
	Stats          Stats
	TotalQuestions int
	Results        []api.BatchResultItem
	// Placeholder is set instead of Results when no details can be shown.
	Placeholder string
}

// ConsoleView writes the quiz to a terminal.
type ConsoleView struct {
	w io.Writer
}

func NewConsoleView(w io.Writer) *ConsoleView {
	return &ConsoleView{w: w}
}

func (v *ConsoleView) State(s State) {
	switch s {
	case LoadingBatch:
		fmt.Fprintln(v.w, "Loading question…")
	case Polling:
		fmt.Fprintln(v.w, "Checking for your partner's answer…")
	}
}

func (v *ConsoleView) Stats(s Stats) {
	line := fmt.Sprintf("Score: %d | Answered: %d | Matches: %d", s.Score, s.Answered, s.Matches)
	if pct, ok := s.MatchPercent(); ok {
		line += fmt.Sprintf(" | Compatibility: %d%%", pct)
	}
	fmt.Fprintln(v.w, line)
}

func (v *ConsoleView) Notice(msg string) {
	fmt.Fprintln(v.w, msg)
}

func (v *ConsoleView) Question(q *api.Question) {
	fmt.Fprintln(v.w)
	if q.BatchProgress != nil {
		fmt.Fprintf(v.w, "Question %d of %d\n", q.BatchProgress.Current, q.BatchProgress.Total)
	}
	fmt.Fprintln(v.w, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(v.w, "  %d) %s\n", i+1, opt)
	}
}

func (v *ConsoleView) Options(enabled bool) {
	if enabled {
		fmt.Fprint(v.w, "Your answer: ")
	}
}

func (v *ConsoleView) Result(r Result) {
	fmt.Fprintf(v.w, "=> %s\n", r.Text())
}

func (v *ConsoleView) NextControl(visible bool) {
	if visible {
		fmt.Fprintln(v.w, "Press enter for the next question.")
	}
}

func (v *ConsoleView) Error(msg string) {
	fmt.Fprintln(v.w, msg)
}

func (v *ConsoleView) BatchComplete(s Summary) {
	fmt.Fprintln(v.w)
	fmt.Fprintln(v.w, "Batch complete!")
	fmt.Fprintf(v.w, "Score: %d | Matches: %d | Questions: %d\n", s.Stats.Score, s.Stats.Matches, s.TotalQuestions)
	if s.Placeholder != "" {
		fmt.Fprintln(v.w, s.Placeholder)
	}
	for _, r := range s.Results {
		mark := "x No Match"
		if r.Match {
			mark = "✓ Match!"
		}
		fmt.Fprintf(v.w, "%s\n   You: %s | Partner: %s\n   %s\n", r.Question, r.YourAnswer, r.PartnerAnswer, mark)
	}
	fmt.Fprintln(v.w, strings.Repeat("-", 32))
	fmt.Fprintln(v.w, "Type 'new' to start a new question batch.")
}
