package quiz

import (
	"fmt"
	"math"
)

type State int

const (
	CheckingStatus State = iota
	PartnerRequired
	LoadingBatch
	StartPrompt
	QuestionDisplayed
	Submitting
	WaitingForPartner
	Polling
	ResultShown
	BatchComplete
)

var stateNames = [...]string{
	CheckingStatus:    "checking_status",
	PartnerRequired:   "partner_required",
	LoadingBatch:      "loading_batch",
	StartPrompt:       "start_prompt",
	QuestionDisplayed: "question_displayed",
	Submitting:        "submitting",
	WaitingForPartner: "waiting_for_partner",
	Polling:           "polling",
	ResultShown:       "result_shown",
	BatchComplete:     "batch_complete",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Texts shown to the player.
const (
	PartnerRequiredText    = "You need to connect with a partner to start the compatibility quiz!"
	StartPromptText        = "Ready to test your compatibility?"
	WaitingText            = "Waiting for partner…"
	InvalidQuestionText    = "Error: Received invalid question data from server."
	NoQuestionText         = "Error: Question data is not available. Please try refreshing the page."
	ResultsUnavailableText = "Details not available yet. Play another batch to see more!"
	NoResultsText          = "No results available for this batch yet."
	PartnerTimeoutText     = "Your partner hasn't answered yet. Come back later to see the result."
)

func PendingNotice(n int) string {
	return fmt.Sprintf("Your partner has answered %d question(s) that you haven't seen yet!", n)
}

// Stats is the running tally for the current player.
type Stats struct {
	Score    int
	Answered int
	Matches  int
}

// MatchPercent returns round(matches/answered*100). ok is false when nothing
// has been answered yet and no percentage should be shown.
func MatchPercent(matches, answered int) (pct int, ok bool) {
	if answered <= 0 {
		return 0, false
	}
	return int(math.Round(float64(matches) / float64(answered) * 100)), true
}

func (s Stats) MatchPercent() (int, bool) {
	return MatchPercent(s.Matches, s.Answered)
}

type Outcome int

const (
	Waiting Outcome = iota
	Match
	NoMatch
)

// Result is the banner shown after an answer is scored, or while it waits
// for the partner.
type Result struct {
	Outcome Outcome
	Delta   int
	// Exact shows Delta as sent, zero included. Answer replies leave it
	// unset and a zero delta falls back to +5 or -2.
	Exact bool
}

const (
	defaultMatchDelta   = 5
	defaultNoMatchDelta = -2
)

func (r Result) Text() string {
	switch r.Outcome {
	case Match:
		d := r.Delta
		if d == 0 && !r.Exact {
			d = defaultMatchDelta
		}
		return fmt.Sprintf("Match! +%d", d)
	case NoMatch:
		d := r.Delta
		if d == 0 && !r.Exact {
			d = defaultNoMatchDelta
		}
		return fmt.Sprintf("No match: %d", d)
	default:
		return WaitingText
	}
}
