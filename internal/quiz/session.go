// Package quiz drives the batch compatibility quiz against the backend.
package quiz

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"together/internal/api"
)

var (
	// ErrPartnerTimeout is returned when the partner does not answer within
	// the poll timeout.
	ErrPartnerTimeout = errors.New("timed out waiting for partner")
	// ErrNoQuestion is returned by SubmitAnswer when no question is open.
	ErrNoQuestion = errors.New("no question is open for answers")
)

// Backend is the quiz API. *api.Quiz implements it.
type Backend interface {
	Score(ctx context.Context) (*api.Score, error)
	Status(ctx context.Context) (*api.Status, error)
	Batch(ctx context.Context) (*api.Batch, error)
	NewBatch(ctx context.Context) (*api.Batch, error)
	Question(ctx context.Context) (*api.Question, error)
	Answer(ctx context.Context, questionID int, answer string) (*api.AnswerResult, error)
	CheckPartnerResponse(ctx context.Context, questionID int) (*api.PartnerResponse, error)
	BatchResults(ctx context.Context, batchID string) (*api.BatchResults, error)
}

type Options struct {
	PollInterval  time.Duration
	PollTimeout   time.Duration
	CompleteDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval:  3 * time.Second,
		PollTimeout:   5 * time.Minute,
		CompleteDelay: 1500 * time.Millisecond,
	}
}

// Session is one player's quiz. It is driven from a single goroutine.
type Session struct {
	backend Backend
	view    View
	logger  *slog.Logger
	opts    Options

	state     State
	stats     Stats
	question  *api.Question
	batchID   string
	batchSize int
}

func NewSession(backend Backend, view View, logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = def.PollTimeout
	}
	if opts.CompleteDelay < 0 {
		opts.CompleteDelay = 0
	}
	return &Session{
		backend: backend,
		view:    view,
		logger:  logger,
		opts:    opts,
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Stats() Stats { return s.stats }

// Question returns the open question, or nil.
func (s *Session) Question() *api.Question { return s.question }

func (s *Session) setState(st State) {
	if s.state != st {
		s.logger.Debug("quiz state", "from", s.state, "to", st)
	}
	s.state = st
	s.view.State(st)
}

// fail shows err and returns it. 401s are returned without being shown.
func (s *Session) fail(prefix string, err error) error {
	if !errors.Is(err, api.ErrUnauthorized) {
		s.view.Error(prefix + err.Error())
	}
	return err
}

// Start loads the stats, checks the quiz status and moves to the matching
// screen. When the status endpoint is unavailable it tries to load a
// question directly.
func (s *Session) Start(ctx context.Context) error {
	if err := s.LoadStats(ctx); errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	s.setState(CheckingStatus)
	status, err := s.backend.Status(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || ctx.Err() != nil {
			return err
		}
		s.logger.Warn("quiz status unavailable, loading question directly", "error", err)
		return s.LoadQuestion(ctx)
	}

	if !status.HasPartner {
		s.setState(PartnerRequired)
		s.view.Notice(PartnerRequiredText)
		return nil
	}
	if status.PendingQuestions > 0 {
		s.view.Notice(PendingNotice(status.PendingQuestions))
	}

	switch {
	case status.HasActiveBatch && status.BatchInfo != nil && status.BatchInfo.Completed:
		s.batchID = status.BatchInfo.ID
		return s.completeBatch(ctx, 0)
	case status.ActiveBatch():
		return s.resumeBatch(ctx)
	default:
		s.showStartPrompt()
		return nil
	}
}

// LoadStats refreshes the score panel.
func (s *Session) LoadStats(ctx context.Context) error {
	score, err := s.backend.Score(ctx)
	if err != nil {
		return s.fail("Error loading stats: ", err)
	}
	s.stats = Stats{
		Score:    score.Score,
		Answered: score.TotalAnswered,
		Matches:  score.Matches,
	}
	s.view.Stats(s.stats)
	return nil
}

func (s *Session) showStartPrompt() {
	s.question = nil
	s.setState(StartPrompt)
	s.view.Notice(StartPromptText)
}

func (s *Session) resumeBatch(ctx context.Context) error {
	s.setState(LoadingBatch)
	batch, err := s.backend.Batch(ctx)
	if err != nil {
		return s.fail("Error loading batch: ", err)
	}
	if batch.Error != "" {
		s.view.Error(batch.Error)
		return errors.New(batch.Error)
	}

	s.batchID = batch.BatchID
	s.batchSize = batch.TotalQuestions
	if batch.Completed {
		return s.completeBatch(ctx, 0)
	}
	return s.LoadQuestion(ctx)
}

// LoadQuestion fetches and displays the next question of the batch.
func (s *Session) LoadQuestion(ctx context.Context) error {
	s.question = nil
	s.setState(LoadingBatch)

	q, err := s.backend.Question(ctx)
	if err != nil {
		return s.fail("Error: ", err)
	}
	if q.BatchDone() {
		return s.completeBatch(ctx, 0)
	}
	if !q.Valid() {
		s.logger.Warn("invalid question data", "question_id", q.ID, "options", len(q.Options))
		s.view.Error(InvalidQuestionText)
		return errors.New("invalid question data")
	}
	if q.ID == 0 {
		q.ID = rand.IntN(9999) + 1
		s.logger.Warn("question without id, generated one", "question_id", q.ID)
	}
	if q.BatchProgress != nil && q.BatchProgress.Total > 0 {
		s.batchSize = q.BatchProgress.Total
	}

	s.question = q
	s.setState(QuestionDisplayed)
	s.view.Question(q)
	s.view.Options(true)
	return nil
}

// Next moves on after a result.
func (s *Session) Next(ctx context.Context) error {
	return s.LoadQuestion(ctx)
}

// Resume reopens q for answering without fetching it, for callers that do
// not keep the session between requests. Only q.ID is required.
func (s *Session) Resume(q *api.Question) error {
	if q == nil || q.ID == 0 {
		s.view.Error(NoQuestionText)
		return ErrNoQuestion
	}
	s.question = q
	s.setState(QuestionDisplayed)
	return nil
}

// SubmitAnswer posts answer for the open question. If the partner has not
// answered yet it blocks in WaitForPartner.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (Result, error) {
	result, err := s.Answer(ctx, answer)
	if err != nil || result.Outcome != Waiting {
		return result, err
	}
	return s.WaitForPartner(ctx)
}

// Answer posts answer for the open question and shows the outcome. A
// Waiting result leaves the session in WaitingForPartner.
func (s *Session) Answer(ctx context.Context, answer string) (Result, error) {
	if s.question == nil || s.state != QuestionDisplayed {
		s.view.Error(NoQuestionText)
		return Result{}, ErrNoQuestion
	}

	s.view.Options(false)
	s.setState(Submitting)

	res, err := s.backend.Answer(ctx, s.question.ID, answer)
	if err == nil && res.Error != "" {
		err = errors.New(res.Error)
	}
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return Result{}, err
		}
		s.view.Error("Error: " + err.Error())
		s.setState(QuestionDisplayed)
		s.view.Options(true)
		s.view.NextControl(true)
		return Result{}, err
	}

	s.stats.Answered++
	if res.IsMatch || (res.Delta != nil && *res.Delta > 0) {
		s.stats.Matches++
	}
	if res.NewScore != nil {
		s.stats.Score = *res.NewScore
	}
	s.view.Stats(s.stats)

	result := answerResult(res)
	s.view.Result(result)

	if result.Outcome == Waiting {
		s.setState(WaitingForPartner)
		return result, nil
	}

	s.setState(ResultShown)
	if res.BatchComplete {
		return result, s.completeBatch(ctx, s.opts.CompleteDelay)
	}
	s.view.NextControl(true)
	return result, nil
}

func answerResult(res *api.AnswerResult) Result {
	if res.Waiting() {
		return Result{Outcome: Waiting}
	}
	if res.IsMatch || *res.Delta > 0 {
		return Result{Outcome: Match, Delta: *res.Delta}
	}
	return Result{Outcome: NoMatch, Delta: *res.Delta}
}

// WaitForPartner polls check-partner-response until the partner's answer is
// in. Poll errors are logged and retried. Polling ends at the first answer,
// when ctx is done, or after the poll timeout with ErrPartnerTimeout.
func (s *Session) WaitForPartner(ctx context.Context) (Result, error) {
	if s.question == nil {
		return Result{}, ErrNoQuestion
	}
	s.setState(Polling)

	pollCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	questionID := s.question.ID
	for {
		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			s.logger.Info("partner did not answer in time", "question_id", questionID, "timeout", s.opts.PollTimeout)
			s.view.Error(PartnerTimeoutText)
			s.setState(ResultShown)
			s.view.NextControl(true)
			return Result{}, ErrPartnerTimeout
		case <-ticker.C:
		}

		resp, err := s.backend.CheckPartnerResponse(pollCtx, questionID)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return Result{}, err
			}
			s.logger.Debug("partner poll failed", "question_id", questionID, "error", err)
			continue
		}
		if resp.HasAnswered {
			return s.partnerAnswered(ctx, resp)
		}
	}
}

// CheckPartner polls check-partner-response once for questionID and reports
// whether the partner has answered. The result is shown only once they have.
func (s *Session) CheckPartner(ctx context.Context, questionID int) (Result, bool, error) {
	resp, err := s.backend.CheckPartnerResponse(ctx, questionID)
	if err != nil {
		return Result{}, false, err
	}
	if !resp.HasAnswered {
		return Result{}, false, nil
	}
	result, err := s.partnerAnswered(ctx, resp)
	return result, true, err
}

func (s *Session) partnerAnswered(ctx context.Context, resp *api.PartnerResponse) (Result, error) {
	result := Result{Outcome: NoMatch, Delta: resp.Delta, Exact: true}
	if resp.IsMatch {
		result.Outcome = Match
		s.stats.Matches++
	}
	if resp.NewScore != nil {
		s.stats.Score = *resp.NewScore
	}
	s.view.Stats(s.stats)
	s.view.Result(result)
	s.setState(ResultShown)

	if resp.BatchComplete {
		return result, s.completeBatch(ctx, s.opts.CompleteDelay)
	}
	s.view.NextControl(true)
	return result, nil
}

// NewBatch starts a new batch and loads its first question. If the batch
// cannot be created it still tries to load a question.
func (s *Session) NewBatch(ctx context.Context) error {
	s.setState(LoadingBatch)

	batch, err := s.backend.NewBatch(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		s.view.Error("Error: " + err.Error())
		return s.LoadQuestion(ctx)
	}
	if batch.Error != "" {
		s.view.Error(batch.Error)
		s.showStartPrompt()
		return errors.New(batch.Error)
	}

	s.batchID = batch.BatchID
	s.batchSize = batch.TotalQuestions
	s.logger.Info("started quiz batch", "batch_id", s.batchID, "questions", s.batchSize)
	return s.LoadQuestion(ctx)
}

// completeBatch waits delay, then shows the completion screen with the
// batch results when the backend has them.
func (s *Session) completeBatch(ctx context.Context, delay time.Duration) error {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	s.question = nil
	s.setState(BatchComplete)

	summary := Summary{Stats: s.stats, TotalQuestions: s.batchSize}
	if s.batchID == "" {
		summary.Placeholder = ResultsUnavailableText
		s.view.BatchComplete(summary)
		return nil
	}

	results, err := s.backend.BatchResults(ctx, s.batchID)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return err
	case err != nil || results.Error != "":
		if err != nil {
			s.logger.Debug("batch results unavailable", "batch_id", s.batchID, "error", err)
		}
		summary.Placeholder = ResultsUnavailableText
	case len(results.Questions) == 0:
		summary.Placeholder = NoResultsText
	default:
		summary.Results = results.Questions
	}
	s.view.BatchComplete(summary)
	return nil
}
