package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"together/internal/api"
	"together/internal/metrics"
	"together/internal/pageutil"
	"together/internal/quiz"
)

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", "Log in", nil)
}

// newSession builds a quiz session for the request's token. The session
// lives for this request only.
func (s *Server) newSession(r *http.Request) (*quiz.Session, *quizView, error) {
	client, err := s.apiClient(tokenFromContext(r.Context()))
	if err != nil {
		return nil, nil, err
	}
	view := &quizView{}
	sess := quiz.NewSession(api.NewQuiz(client, s.logger), view, s.logger, quiz.Options{
		PollInterval: s.cfg.PollInterval,
		PollTimeout:  s.cfg.PollTimeout,
	})
	return sess, view, nil
}

func (s *Server) quizPage(w http.ResponseWriter, r *http.Request) {
	sess, view, err := s.newSession(r)
	if err != nil {
		s.logger.Error("quiz session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if id, _ := strconv.Atoi(r.URL.Query().Get("waiting")); id > 0 {
		s.quizWaiting(w, r, sess, view, id)
		return
	}

	if err := sess.Start(r.Context()); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.redirectToLogin(w, r, SessionExpiredText)
			return
		}
		s.logger.Warn("quiz page incomplete", "state", sess.State(), "error", err)
	}
	s.render(w, r, "quiz.html", "Compatibility Quiz", &view.page)
}

// quizWaiting checks once for the partner's answer. Until it arrives the
// page refreshes itself every poll interval, for at most the poll timeout.
func (s *Server) quizWaiting(w http.ResponseWriter, r *http.Request, sess *quiz.Session, view *quizView, questionID int) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if since > 0 && time.Since(time.Unix(since, 0)) > s.cfg.PollTimeout {
		s.flash(w, pageutil.FlashError, quiz.PartnerTimeoutText)
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
		return
	}

	result, answered, err := sess.CheckPartner(r.Context(), questionID)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.redirectToLogin(w, r, SessionExpiredText)
		return
	case answered:
		s.flash(w, resultCategory(result), result.Text())
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
		return
	case err != nil:
		s.logger.Debug("partner check failed", "question_id", questionID, "error", err)
	}

	if err := sess.LoadStats(r.Context()); errors.Is(err, api.ErrUnauthorized) {
		s.redirectToLogin(w, r, SessionExpiredText)
		return
	}
	view.page.State = quiz.Polling
	view.page.Waiting = true
	view.page.WaitingFor = questionID
	view.page.Result = &quiz.Result{Outcome: quiz.Waiting}

	w.Header().Set("Refresh", refreshSeconds(s.cfg.PollInterval))
	s.render(w, r, "quiz.html", "Compatibility Quiz", &view.page)
}

// refreshSeconds renders d for a Refresh header. Browsers only take whole
// seconds, and zero would reload in a loop.
func refreshSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func (s *Server) quizAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.Atoi(r.PostFormValue("question_id"))
	answer := r.PostFormValue("answer")
	if err != nil || questionID <= 0 || answer == "" {
		s.flash(w, pageutil.FlashError, quiz.NoQuestionText)
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
		return
	}

	sess, view, err := s.newSession(r)
	if err != nil {
		s.logger.Error("quiz session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := sess.Resume(&api.Question{ID: questionID}); err != nil {
		s.flash(w, pageutil.FlashError, view.lastError())
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
		return
	}

	result, err := sess.Answer(r.Context(), answer)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.redirectToLogin(w, r, SessionExpiredText)
		return
	case err != nil:
		s.flash(w, pageutil.FlashError, view.lastError())
	case result.Outcome == quiz.Waiting:
		q := url.Values{}
		q.Set("waiting", strconv.Itoa(questionID))
		q.Set("since", strconv.FormatInt(time.Now().Unix(), 10))
		http.Redirect(w, r, "/quiz?"+q.Encode(), http.StatusSeeOther)
		return
	default:
		s.flash(w, resultCategory(result), result.Text())
	}
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

func (s *Server) quizNewBatch(w http.ResponseWriter, r *http.Request) {
	sess, view, err := s.newSession(r)
	if err != nil {
		s.logger.Error("quiz session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	err = sess.NewBatch(r.Context())
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.redirectToLogin(w, r, SessionExpiredText)
		return
	case err != nil:
		s.flash(w, pageutil.FlashError, view.lastError())
	case view.lastError() != "":
		// The batch could not be created but a question was still loaded.
		s.flash(w, pageutil.FlashError, view.lastError())
	}
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

func resultCategory(r quiz.Result) string {
	switch r.Outcome {
	case quiz.Match:
		return pageutil.FlashSuccess
	case quiz.NoMatch:
		return pageutil.FlashError
	default:
		return pageutil.FlashInfo
	}
}

// insightsPage is the metrics screen as the template sees it.
type insightsPage struct {
	PartnerID string
	Window    metrics.TimeWindow
	Presets   []metrics.Preset
	Auto      bool
	Status    metrics.Status
	Snapshot  *snapshotView
}

// snapshotView flattens a snapshot for the template.
type snapshotView struct {
	Timestamp    string
	MessageCount int
	HasBreakdown bool
	You          int
	Partner      int
	ResponseTime string
	Frequency    string
	HasSentiment bool
	Positive     int
	Neutral      int
	Negative     int
	Insights     []metrics.Insight
}

func newSnapshotView(snap metrics.Snapshot) *snapshotView {
	v := &snapshotView{
		Timestamp:    snap.Timestamp,
		MessageCount: snap.MessageCount,
		ResponseTime: snap.ResponseTimeText(),
		Frequency:    snap.FrequencyText(),
		Insights:     snap.Insights,
	}
	v.You, v.Partner, v.HasBreakdown = snap.Breakdown()
	v.Positive, v.Neutral, v.Negative, v.HasSentiment = snap.Sentiment()
	return v
}

func (s *Server) insightsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := &insightsPage{
		PartnerID: q.Get("partner_id"),
		Window:    s.cfg.MetricsWindow,
		Presets:   metrics.Presets,
		Auto:      q.Get("auto") == "1",
		Status:    metrics.StatusUpdating,
	}
	if data.PartnerID == "" {
		data.PartnerID = s.cfg.PartnerID
	}
	if raw := q.Get("window"); raw != "" {
		win, err := metrics.ParseWindow(raw)
		if err != nil {
			s.flash(w, pageutil.FlashError, err.Error())
			http.Redirect(w, r, "/insights", http.StatusSeeOther)
			return
		}
		data.Window = win
	}

	if data.PartnerID == "" {
		data.Status = metrics.Status{Kind: metrics.StatusOffline, Message: "No partner selected"}
		s.render(w, r, "insights.html", "Insights", data)
		return
	}

	client, err := s.apiClient(tokenFromContext(r.Context()))
	if err != nil {
		s.logger.Error("metrics client", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	report, err := metrics.APIFetcher{Client: client}.Fetch(r.Context(), data.PartnerID, data.Window)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.redirectToLogin(w, r, SessionExpiredText)
		return
	case err != nil:
		s.logger.Warn("metrics fetch failed", "partner_id", data.PartnerID, "window", data.Window.String(), "error", err)
		data.Status = metrics.FetchFailed(err)
	default:
		data.Snapshot = newSnapshotView(report.Snapshot(metrics.DefaultMaxInsights))
		data.Status = metrics.UpdatedAt(time.Now(), s.cfg.Location)
	}

	if data.Auto {
		w.Header().Set("Refresh", refreshSeconds(s.cfg.MetricsRefresh))
	}
	s.render(w, r, "insights.html", "Insights", data)
}
