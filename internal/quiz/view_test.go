package quiz

import (
	"bytes"
	"strings"
	"testing"

	"together/internal/api"
)

func TestConsoleView_Stats(t *testing.T) {
	var buf bytes.Buffer
	v := NewConsoleView(&buf)

	v.Stats(Stats{Score: 10})
	if strings.Contains(buf.String(), "%") {
		t.Errorf("expected no percentage before any answer, got %q", buf.String())
	}

	buf.Reset()
	v.Stats(Stats{Score: 55, Answered: 3, Matches: 2})
	if !strings.Contains(buf.String(), "Compatibility: 67%") {
		t.Errorf("expected 67%% compatibility, got %q", buf.String())
	}
}

func TestConsoleView_QuestionAndResult(t *testing.T) {
	var buf bytes.Buffer
	v := NewConsoleView(&buf)

	v.Question(&api.Question{
		Question:      "Beach or mountains?",
		Options:       []string{"Beach", "Mountains"},
		BatchProgress: &api.Progress{Current: 2, Total: 5},
	})
	v.Result(Result{Outcome: Match, Delta: 5})

	out := buf.String()
	for _, want := range []string{"Question 2 of 5", "1) Beach", "2) Mountains", "Match! +5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConsoleView_BatchComplete(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleView(&buf).BatchComplete(Summary{Placeholder: ResultsUnavailableText})

	if !strings.Contains(buf.String(), ResultsUnavailableText) {
		t.Errorf("expected placeholder, got %q", buf.String())
	}
}
