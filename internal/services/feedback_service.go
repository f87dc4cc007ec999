package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/metrics"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/sentiment"
)

// QuestionStore resolves the questions answers refer to.
type QuestionStore interface {
	// GetQuestion returns nil, nil when no question has the given id.
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	ListActiveQuestions(ctx context.Context) ([]*models.Question, error)
}

// SubmissionTx is one all-or-nothing unit of work. Exactly one of Commit or
// Rollback must be called.
type SubmissionTx interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) (string, error)
	AddAnswer(ctx context.Context, a *models.Answer) error
	UpdateOverall(ctx context.Context, submissionID string, score float64, label models.Label) error
	Commit() error
	Rollback() error
}

// SubmissionStore persists submissions and serves the history views.
type SubmissionStore interface {
	BeginSubmission(ctx context.Context) (SubmissionTx, error)
	ListSubmissionsBySubmitter(ctx context.Context, userID string) ([]*models.Submission, error)
	ListSubmissions(ctx context.Context) ([]*models.Submission, error)
	// GetSubmission returns the submission with its answers, or nil, nil.
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	// DeleteSubmission reports whether a submission was removed.
	DeleteSubmission(ctx context.Context, id string) (bool, error)
}

// SubmitAnswer mirrors one inbound answer.
type SubmitAnswer struct {
	QuestionID int64
	RawValue   string
}

// SubmitRequest carries a sanitized submission from the transport layer.
type SubmitRequest struct {
	Kind        models.SubmitterKind
	SubmitterID string
	Answers     []SubmitAnswer
}

// SubmitResult is what the caller learns about a committed submission.
type SubmitResult struct {
	SubmissionID  string       `json:"feedbackId"`
	OverallScore  float64      `json:"overall_sentiment_score"`
	OverallLabel  models.Label `json:"overall_sentiment_label"`
	AnswersScored int          `json:"answers_scored"`
}

// Requester identifies the authenticated caller of a read operation.
type Requester struct {
	UserID string
	Role   models.Role
}

func (r Requester) IsAdmin() bool { return r.Role == models.RoleAdmin }

// FeedbackService hosts feedback submission and its history views.
type FeedbackService struct {
	questions   QuestionStore
	submissions SubmissionStore
	analyzer    sentiment.Analyzer
	clock       clockwork.Clock
	idGenerator func() string
}

// NewFeedbackService wires the service to its stores and text analyzer.
func NewFeedbackService(questions QuestionStore, submissions SubmissionStore, analyzer sentiment.Analyzer) *FeedbackService {
	return &FeedbackService{
		questions:   questions,
		submissions: submissions,
		analyzer:    analyzer,
		clock:       clockwork.NewRealClock(),
		idGenerator: uuid.NewString,
	}
}

// ListQuestions returns the active questions in display order.
func (s *FeedbackService) ListQuestions(ctx context.Context) ([]*models.Question, error) {
	qs, err := s.questions.ListActiveQuestions(ctx)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return qs, nil
}

func validateSubmitter(req SubmitRequest) (models.SubmitterKind, *string, error) {
	if req.Kind == "" || req.Answers == nil {
		return "", nil, NewInvalidError("Invalid payload")
	}
	if !req.Kind.Valid() {
		return "", nil, NewInvalidError("Invalid submitter_type")
	}
	if req.Kind == models.SubmitterGuest {
		return req.Kind, nil, nil
	}
	id := strings.TrimSpace(req.SubmitterID)
	if id == "" {
		return "", nil, NewInvalidError("User ID required for user submissions")
	}
	return req.Kind, &id, nil
}

// Submit scores every answer, aggregates the overall sentiment and persists
// the submission with its answers in one transaction. Answers to unknown or
// inactive questions are dropped. Any persistence failure rolls everything back.
func (s *FeedbackService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	kind, submitterID, err := validateSubmitter(req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), metrics.StatusRejected).Inc()
		return nil, err
	}

	tx, err := s.submissions.BeginSubmission(ctx)
	if err != nil {
		return nil, s.persistFailure(ctx, kind, "begin transaction", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Feedback rollback failed", "error", rbErr)
		}
	}()

	sub := &models.Submission{
		ID:           s.idGenerator(),
		Kind:         kind,
		SubmitterID:  submitterID,
		OverallLabel: models.LabelNeutral,
		CreatedAt:    s.clock.Now().UTC(),
	}
	submissionID, err := tx.CreateSubmission(ctx, sub)
	if err != nil {
		return nil, s.persistFailure(ctx, kind, "create submission", err)
	}

	var agg Aggregate
	position := 0
	for _, ans := range req.Answers {
		if ans.QuestionID <= 0 {
			metrics.AnswersSkippedTotal.Inc()
			continue
		}
		q, err := s.questions.GetQuestion(ctx, ans.QuestionID)
		if err != nil {
			return nil, s.persistFailure(ctx, kind, "resolve question", err)
		}
		rule, ok := RuleFor(q, s.analyzer)
		if !ok {
			metrics.AnswersSkippedTotal.Inc()
			continue
		}
		sen := rule.Evaluate(ans.RawValue)
		answer := &models.Answer{
			SubmissionID: submissionID,
			QuestionID:   q.ID,
			RawValue:     ans.RawValue,
			Score:        sen.Score,
			Label:        sen.Label,
			Position:     position,
		}
		if err := tx.AddAnswer(ctx, answer); err != nil {
			return nil, s.persistFailure(ctx, kind, "add answer", err)
		}
		position++
		agg.Add(sen)
		metrics.AnswersScoredTotal.WithLabelValues(string(rule.questionType()), string(sen.Label)).Inc()
	}

	overall, label := agg.Overall()
	if err := tx.UpdateOverall(ctx, submissionID, overall, label); err != nil {
		return nil, s.persistFailure(ctx, kind, "update overall", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.persistFailure(ctx, kind, "commit", err)
	}
	committed = true

	metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.StatusCommitted).Inc()
	metrics.OverallSentiment.Observe(overall)
	slog.InfoContext(ctx, "Feedback submitted",
		"feedback_id", submissionID,
		"submitter_type", kind,
		"answers", position,
		"overall_score", overall,
		"overall_label", label,
	)

	return &SubmitResult{
		SubmissionID:  submissionID,
		OverallScore:  overall,
		OverallLabel:  label,
		AnswersScored: position,
	}, nil
}

func (s *FeedbackService) persistFailure(ctx context.Context, kind models.SubmitterKind, step string, err error) error {
	metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.StatusRolledBack).Inc()
	slog.ErrorContext(ctx, "Feedback submission error", "step", step, "error", err)
	return NewInternalError("Server error", err)
}

// ListUserFeedbacks returns the submission summaries of userID, newest first.
// Only the user themself or an admin may read them.
func (s *FeedbackService) ListUserFeedbacks(ctx context.Context, requester Requester, userID string) ([]*models.Submission, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewInvalidError("user id required")
	}
	if requester.UserID != userID && !requester.IsAdmin() {
		return nil, NewForbiddenError("Access denied")
	}
	subs, err := s.submissions.ListSubmissionsBySubmitter(ctx, userID)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return subs, nil
}

// ListAllFeedbacks returns every submission, newest first.
func (s *FeedbackService) ListAllFeedbacks(ctx context.Context) ([]*models.Submission, error) {
	subs, err := s.submissions.ListSubmissions(ctx)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return subs, nil
}

// GetFeedback returns one submission with its scored answers. Admins may read
// any submission, users only their own.
func (s *FeedbackService) GetFeedback(ctx context.Context, requester Requester, id string) (*models.Submission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewInvalidError("feedback id required")
	}
	sub, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	if sub == nil {
		return nil, NewNotFoundError("Feedback not found")
	}
	if !requester.IsAdmin() && (sub.SubmitterID == nil || *sub.SubmitterID != requester.UserID) {
		return nil, NewForbiddenError("Access denied")
	}
	return sub, nil
}

// DeleteFeedback removes a submission and, by cascade, its answers.
func (s *FeedbackService) DeleteFeedback(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return NewInvalidError("feedback id required")
	}
	ok, err := s.submissions.DeleteSubmission(ctx, id)
	if err != nil {
		return NewInternalError("Server error", err)
	}
	if !ok {
		return NewNotFoundError("Feedback not found")
	}
	slog.InfoContext(ctx, "Feedback deleted", "feedback_id", id)
	return nil
}
