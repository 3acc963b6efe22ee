package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const quizPrefix = "quiz"

// Score is the response of quiz/score.
type Score struct {
	Score         int    `json:"score"`
	TotalAnswered int    `json:"total_answered"`
	Matches       int    `json:"matches"`
	MatchPercent  *int   `json:"match_percent,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Status is the response of quiz/status.
type Status struct {
	HasPartner       bool       `json:"has_partner"`
	PartnerName      string     `json:"partner_name,omitempty"`
	CurrentScore     int        `json:"current_score"`
	HasActiveBatch   bool       `json:"has_active_batch"`
	PendingQuestions int        `json:"pending_questions"`
	BatchInfo        *BatchInfo `json:"batch_info,omitempty"`
	Error            string     `json:"error,omitempty"`
}

type BatchInfo struct {
	ID        string `json:"id"`
	Progress  string `json:"progress,omitempty"`
	Completed bool   `json:"completed"`
}

// ActiveBatch reports whether there is an unfinished batch to resume.
func (s *Status) ActiveBatch() bool {
	return s.HasActiveBatch && s.BatchInfo != nil && !s.BatchInfo.Completed
}

// Batch is the response of quiz/batch and quiz/batch/new.
type Batch struct {
	BatchID        string `json:"batch_id"`
	TotalQuestions int    `json:"total_questions"`
	CurrentIndex   int    `json:"current_index"`
	Completed      bool   `json:"completed"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Question is the response of quiz/question.
type Question struct {
	ID            int       `json:"id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	BatchProgress *Progress `json:"batch_progress,omitempty"`
	Message       string    `json:"message,omitempty"`
	Completed     bool      `json:"completed,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Valid reports whether q can be shown: it needs text and two options.
func (q *Question) Valid() bool {
	return q.Question != "" && len(q.Options) >= 2
}

// BatchDone reports the "no more questions in this batch" reply.
func (q *Question) BatchDone() bool {
	return q.Completed && q.Message != ""
}

// AnswerResult is the response of quiz/answer.
type AnswerResult struct {
	Message           string `json:"message,omitempty"`
	WaitingForPartner bool   `json:"waiting_for_partner"`
	Delta             *int   `json:"delta,omitempty"`
	IsMatch           bool   `json:"is_match"`
	NewScore          *int   `json:"new_score,omitempty"`
	BatchComplete     bool   `json:"batch_complete"`
	Error             string `json:"error,omitempty"`
}

// Waiting reports whether the answer is not yet scored.
func (r *AnswerResult) Waiting() bool {
	return r.WaitingForPartner || r.Delta == nil
}

// PartnerResponse is the response of quiz/check-partner-response.
type PartnerResponse struct {
	HasAnswered   bool   `json:"has_answered"`
	IsMatch       bool   `json:"is_match"`
	Delta         int    `json:"delta"`
	NewScore      *int   `json:"new_score,omitempty"`
	BatchComplete bool   `json:"batch_complete"`
	Error         string `json:"error,omitempty"`
}

// BatchResults is the response of quiz/batch/{id}/results.
type BatchResults struct {
	Questions []BatchResultItem `json:"questions"`
	Error     string            `json:"error,omitempty"`
}

type BatchResultItem struct {
	Question      string `json:"question"`
	YourAnswer    string `json:"your_answer"`
	PartnerAnswer string `json:"partner_answer"`
	Match         bool   `json:"match"`
}

type answerRequest struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// Quiz is the compatibility quiz API. Score, Question and Answer go through
// a primary/legacy fallback chain; the batch endpoints only exist on the
// primary API.
type Quiz struct {
	client *Client
	chain  *Chain
}

func NewQuiz(client *Client, logger *slog.Logger) *Quiz {
	return &Quiz{
		client: client,
		chain:  NewChain(logger, Primary(client), Legacy(client, "")),
	}
}

func (q *Quiz) Score(ctx context.Context) (*Score, error) {
	var out Score
	req := Request{Method: http.MethodGet, Path: quizPrefix + "/score"}
	if err := q.chain.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := q.client.Get(ctx, quizPrefix+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) Batch(ctx context.Context) (*Batch, error) {
	var out Batch
	if err := q.client.Get(ctx, quizPrefix+"/batch", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) NewBatch(ctx context.Context) (*Batch, error) {
	var out Batch
	if err := q.client.Post(ctx, quizPrefix+"/batch/new", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) Question(ctx context.Context) (*Question, error) {
	var out Question
	req := Request{Method: http.MethodGet, Path: quizPrefix + "/question"}
	if err := q.chain.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) Answer(ctx context.Context, questionID int, answer string) (*AnswerResult, error) {
	var out AnswerResult
	req := Request{
		Method: http.MethodPost,
		Path:   quizPrefix + "/answer",
		Body:   answerRequest{QuestionID: questionID, Answer: answer},
	}
	if err := q.chain.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) CheckPartnerResponse(ctx context.Context, questionID int) (*PartnerResponse, error) {
	var out PartnerResponse
	query := url.Values{"question_id": {strconv.Itoa(questionID)}}
	if err := q.client.Get(ctx, quizPrefix+"/check-partner-response", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Quiz) BatchResults(ctx context.Context, batchID string) (*BatchResults, error) {
	var out BatchResults
	path := quizPrefix + "/batch/" + batchID + "/results"
	if err := q.client.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
