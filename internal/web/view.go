package web

import (
	"together/internal/api"
	"together/internal/quiz"
)

// quizPage is the quiz screen as the template sees it.
type quizPage struct {
	State        quiz.State
	Stats        quiz.Stats
	MatchPercent int
	HasPercent   bool
	Notices      []string
	Errors       []string
	Question     *api.Question
	CanAnswer    bool
	Result       *quiz.Result
	ShowNext     bool
	Summary      *quiz.Summary

	// Waiting is set while the page polls for the partner's answer.
	Waiting    bool
	WaitingFor int
}

// CanStartBatch reports whether the page offers a new batch.
func (p *quizPage) CanStartBatch() bool {
	return p.State == quiz.StartPrompt || p.State == quiz.BatchComplete
}

// quizView collects what a session shows during one request so the page
// can be rendered afterwards.
type quizView struct {
	page quizPage
}

func (v *quizView) State(s quiz.State) { v.page.State = s }

func (v *quizView) Stats(s quiz.Stats) {
	v.page.Stats = s
	v.page.MatchPercent, v.page.HasPercent = s.MatchPercent()
}

func (v *quizView) Notice(msg string) { v.page.Notices = append(v.page.Notices, msg) }

func (v *quizView) Question(q *api.Question) {
	v.page.Question = q
	v.page.Result = nil
	v.page.ShowNext = false
}

func (v *quizView) Options(enabled bool) { v.page.CanAnswer = enabled }

func (v *quizView) Result(r quiz.Result) { v.page.Result = &r }

func (v *quizView) NextControl(visible bool) { v.page.ShowNext = visible }

func (v *quizView) Error(msg string) { v.page.Errors = append(v.page.Errors, msg) }

func (v *quizView) BatchComplete(s quiz.Summary) {
	v.page.Question = nil
	v.page.CanAnswer = false
	v.page.Summary = &s
}

func (v *quizView) lastError() string {
	if len(v.page.Errors) == 0 {
		return ""
	}
	return v.page.Errors[len(v.page.Errors)-1]
}
