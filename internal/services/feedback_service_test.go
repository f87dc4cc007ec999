package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/metrics"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
)

// --- Stubs ---

type stubQuestionStore struct {
	questions map[int64]*models.Question
	err       error
}

func (s *stubQuestionStore) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	if q, ok := s.questions[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (s *stubQuestionStore) ListActiveQuestions(context.Context) ([]*models.Question, error) {
	out := []*models.Question{}
	for id := int64(1); id <= int64(len(s.questions)); id++ {
		if q, ok := s.questions[id]; ok && q.Active {
			out = append(out, q)
		}
	}
	return out, s.err
}

// stubSubmissionStore only makes transaction writes visible on Commit.
type stubSubmissionStore struct {
	mu          sync.Mutex
	submissions map[string]*models.Submission
	answers     []*models.Answer
	beginErr    error
	failAnswerN int // fail the Nth AddAnswer call (1-based); 0 disables
	failCommit  bool
	txs         []*stubTx
}

func newStubSubmissionStore() *stubSubmissionStore {
	return &stubSubmissionStore{submissions: map[string]*models.Submission{}}
}

func (s *stubSubmissionStore) BeginSubmission(context.Context) (SubmissionTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx := &stubTx{store: s}
	s.mu.Lock()
	s.txs = append(s.txs, tx)
	s.mu.Unlock()
	return tx, nil
}

func (s *stubSubmissionStore) ListSubmissionsBySubmitter(_ context.Context, userID string) ([]*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Submission{}
	for _, sub := range s.submissions {
		if sub.Kind == models.SubmitterUser && sub.SubmitterID != nil && *sub.SubmitterID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubSubmissionStore) ListSubmissions(context.Context) ([]*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Submission{}
	for _, sub := range s.submissions {
		out = append(out, sub)
	}
	return out, nil
}

func (s *stubSubmissionStore) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	sub, ok := s.submissions[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	cp := *sub
	for _, a := range s.answersFor(id) {
		cp.Answers = append(cp.Answers, *a)
	}
	return &cp, nil
}

func (s *stubSubmissionStore) DeleteSubmission(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[id]; !ok {
		return false, nil
	}
	delete(s.submissions, id)
	kept := s.answers[:0]
	for _, a := range s.answers {
		if a.SubmissionID != id {
			kept = append(kept, a)
		}
	}
	s.answers = kept
	return true, nil
}

func (s *stubSubmissionStore) answersFor(id string) []*models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Answer{}
	for _, a := range s.answers {
		if a.SubmissionID == id {
			out = append(out, a)
		}
	}
	return out
}

type stubTx struct {
	store      *stubSubmissionStore
	sub        *models.Submission
	answers    []*models.Answer
	addCalls   int
	committed  bool
	rolledBack bool
}

func (t *stubTx) CreateSubmission(_ context.Context, sub *models.Submission) (string, error) {
	cp := *sub
	t.sub = &cp
	return cp.ID, nil
}

func (t *stubTx) AddAnswer(_ context.Context, a *models.Answer) error {
	t.addCalls++
	if t.store.failAnswerN > 0 && t.addCalls == t.store.failAnswerN {
		return errors.New("disk full")
	}
	cp := *a
	t.answers = append(t.answers, &cp)
	return nil
}

func (t *stubTx) UpdateOverall(_ context.Context, id string, score float64, label models.Label) error {
	if t.sub == nil || t.sub.ID != id {
		return errors.New("no such submission")
	}
	t.sub.OverallScore = score
	t.sub.OverallLabel = label
	return nil
}

func (t *stubTx) Commit() error {
	if t.committed || t.rolledBack {
		return errors.New("tx done")
	}
	if t.store.failCommit {
		return errors.New("commit failed")
	}
	t.committed = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.submissions[t.sub.ID] = t.sub
	t.store.answers = append(t.store.answers, t.answers...)
	return nil
}

func (t *stubTx) Rollback() error {
	if t.committed || t.rolledBack {
		return errors.New("tx done")
	}
	t.rolledBack = true
	return nil
}

// --- Helpers ---

func testQuestions() *stubQuestionStore {
	return &stubQuestionStore{questions: map[int64]*models.Question{
		1: {ID: 1, Type: models.QuestionRating, Text: "Rate your week", Active: true},
		2: {ID: 2, Type: models.QuestionChoice, Text: "Do you feel supported?", Options: []string{"Yes", "No", "Sometimes"}, Active: true},
		3: {ID: 3, Type: models.QuestionText, Text: "Anything else?", Active: true},
		4: {ID: 4, Type: models.QuestionChoice, Text: "Workload", Options: []string{"Light", "Balanced", "Heavy", "Crushing"}, Active: true},
		5: {ID: 5, Type: models.QuestionRating, Text: "Retired question", Active: false},
	}}
}

func newTestFeedbackService(qs *stubQuestionStore, ss *stubSubmissionStore) *FeedbackService {
	svc := NewFeedbackService(qs, ss, &fixedAnalyzer{score: 2})
	svc.clock = clockwork.NewFakeClockAt(time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC))
	n := 0
	svc.idGenerator = func() string {
		n++
		return "FB" + string(rune('0'+n))
	}
	return svc
}

// --- Tests ---

func TestSubmitMixedAnswers(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Kind: models.SubmitterGuest,
		Answers: []SubmitAnswer{
			{QuestionID: 1, RawValue: "5"},
			{QuestionID: 2, RawValue: "no"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "FB1", res.SubmissionID)
	assert.InDelta(t, 0.3/2.7, res.OverallScore, 1e-9)
	assert.Equal(t, models.LabelNeutral, res.OverallLabel)
	assert.Equal(t, 2, res.AnswersScored)

	sub := ss.submissions["FB1"]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubmitterGuest, sub.Kind)
	assert.Nil(t, sub.SubmitterID)
	assert.Equal(t, time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC), sub.CreatedAt)
	assert.InDelta(t, res.OverallScore, sub.OverallScore, 1e-12)

	answers := ss.answersFor("FB1")
	require.Len(t, answers, 2)
	assert.Equal(t, int64(1), answers[0].QuestionID)
	assert.Equal(t, 1.0, answers[0].Score)
	assert.Equal(t, models.LabelPositive, answers[0].Label)
	assert.Equal(t, 0, answers[0].Position)
	assert.Equal(t, "no", answers[1].RawValue)
	assert.Equal(t, -1.0, answers[1].Score)
	assert.Equal(t, 1, answers[1].Position)
}

func TestSubmitSkipsUnknownAndInactiveQuestions(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Kind:        models.SubmitterUser,
		SubmitterID: "u42",
		Answers: []SubmitAnswer{
			{QuestionID: 99, RawValue: "5"},
			{QuestionID: 5, RawValue: "1"},
			{QuestionID: 0, RawValue: "Yes"},
			{QuestionID: 4, RawValue: "Balanced"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AnswersScored)
	assert.InDelta(t, -1.0/3, res.OverallScore, 1e-9)
	assert.Equal(t, models.LabelNegative, res.OverallLabel)

	answers := ss.answersFor(res.SubmissionID)
	require.Len(t, answers, 1)
	assert.Equal(t, int64(4), answers[0].QuestionID)

	sub := ss.submissions[res.SubmissionID]
	require.NotNil(t, sub.SubmitterID)
	assert.Equal(t, "u42", *sub.SubmitterID)
}

func TestSubmitNothingScoredIsNeutral(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 77, RawValue: "Yes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.OverallScore)
	assert.Equal(t, models.LabelNeutral, res.OverallLabel)
	assert.Empty(t, ss.answersFor(res.SubmissionID))
	assert.Contains(t, ss.submissions, res.SubmissionID)
}

func TestSubmitInvalidRatingStillWeighted(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		Kind: models.SubmitterGuest,
		Answers: []SubmitAnswer{
			{QuestionID: 1, RawValue: "9"},
			{QuestionID: 2, RawValue: "Yes"},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.2/2.2, res.OverallScore, 1e-9)

	answers := ss.answersFor(res.SubmissionID)
	require.Len(t, answers, 2)
	assert.Equal(t, 0.0, answers[0].Score)
	assert.Equal(t, models.LabelNeutral, answers[0].Label)
	assert.Equal(t, "9", answers[0].RawValue)
}

func TestSubmitIsDeterministic(t *testing.T) {
	req := SubmitRequest{
		Kind: models.SubmitterGuest,
		Answers: []SubmitAnswer{
			{QuestionID: 1, RawValue: "4"},
			{QuestionID: 3, RawValue: "fine"},
			{QuestionID: 4, RawValue: "Heavy"},
		},
	}
	ss1, ss2 := newStubSubmissionStore(), newStubSubmissionStore()
	r1, err := newTestFeedbackService(testQuestions(), ss1).Submit(context.Background(), req)
	require.NoError(t, err)
	r2, err := newTestFeedbackService(testQuestions(), ss2).Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, ss1.answersFor(r1.SubmissionID), ss2.answersFor(r2.SubmissionID))
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name string
		req  SubmitRequest
		msg  string
	}{
		{"missing kind", SubmitRequest{Answers: []SubmitAnswer{}}, "Invalid payload"},
		{"missing answers", SubmitRequest{Kind: models.SubmitterGuest}, "Invalid payload"},
		{"unknown kind", SubmitRequest{Kind: "robot", Answers: []SubmitAnswer{}}, "Invalid submitter_type"},
		{"user without id", SubmitRequest{Kind: models.SubmitterUser, SubmitterID: "  ", Answers: []SubmitAnswer{}}, "User ID required for user submissions"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ss := newStubSubmissionStore()
			_, err := newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), c.req)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalid))
			assert.Equal(t, c.msg, AsServiceError(err).Message)
			assert.Empty(t, ss.txs, "validation must happen before any transaction")
		})
	}
}

func TestSubmitGuestDropsSubmitterID(t *testing.T) {
	ss := newStubSubmissionStore()
	res, err := newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), SubmitRequest{
		Kind:        models.SubmitterGuest,
		SubmitterID: "u1",
		Answers:     []SubmitAnswer{},
	})
	require.NoError(t, err)
	assert.Nil(t, ss.submissions[res.SubmissionID].SubmitterID)
}

func TestSubmitRollsBackOnAnswerFailure(t *testing.T) {
	ss := newStubSubmissionStore()
	ss.failAnswerN = 3
	svc := newTestFeedbackService(testQuestions(), ss)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Kind: models.SubmitterGuest,
		Answers: []SubmitAnswer{
			{QuestionID: 1, RawValue: "5"},
			{QuestionID: 2, RawValue: "Yes"},
			{QuestionID: 3, RawValue: "great"},
		},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInternal))
	assert.Equal(t, "Server error", AsServiceError(err).Message)

	require.Len(t, ss.txs, 1)
	assert.True(t, ss.txs[0].rolledBack)
	assert.False(t, ss.txs[0].committed)
	assert.Empty(t, ss.submissions)
	assert.Empty(t, ss.answers)
}

func TestSubmitRollsBackOnQuestionLookupFailure(t *testing.T) {
	qs := testQuestions()
	qs.err = errors.New("connection reset")
	ss := newStubSubmissionStore()

	_, err := newTestFeedbackService(qs, ss).Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 1, RawValue: "5"}},
	})
	require.Error(t, err)
	assert.True(t, ss.txs[0].rolledBack)
	assert.Empty(t, ss.submissions)
}

func TestSubmitCommitFailure(t *testing.T) {
	ss := newStubSubmissionStore()
	ss.failCommit = true

	_, err := newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 1, RawValue: "2"}},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInternal))
	assert.True(t, ss.txs[0].rolledBack)
	assert.Empty(t, ss.submissions)
}

func TestSubmitBeginFailure(t *testing.T) {
	ss := newStubSubmissionStore()
	ss.beginErr = errors.New("database is locked")

	_, err := newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ss.beginErr)
}

func TestListQuestionsActiveOnly(t *testing.T) {
	svc := newTestFeedbackService(testQuestions(), newStubSubmissionStore())
	qs, err := svc.ListQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 4)
	for _, q := range qs {
		assert.True(t, q.Active)
	}
}

func TestListUserFeedbacksAccess(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)
	_, err := svc.Submit(context.Background(), SubmitRequest{Kind: models.SubmitterUser, SubmitterID: "u1", Answers: []SubmitAnswer{}})
	require.NoError(t, err)

	subs, err := svc.ListUserFeedbacks(context.Background(), Requester{UserID: "u1", Role: models.RoleUser}, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	subs, err = svc.ListUserFeedbacks(context.Background(), Requester{UserID: "admin", Role: models.RoleAdmin}, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	_, err = svc.ListUserFeedbacks(context.Background(), Requester{UserID: "u2", Role: models.RoleUser}, "u1")
	assert.True(t, IsKind(err, KindForbidden))
}

func TestDeleteFeedback(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)
	res, err := svc.Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 1, RawValue: "3"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFeedback(context.Background(), res.SubmissionID))
	assert.Empty(t, ss.submissions)
	assert.Empty(t, ss.answersFor(res.SubmissionID))

	err = svc.DeleteFeedback(context.Background(), res.SubmissionID)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "Feedback not found", AsServiceError(err).Message)
}

func TestGetFeedbackAccess(t *testing.T) {
	ss := newStubSubmissionStore()
	svc := newTestFeedbackService(testQuestions(), ss)
	ctx := context.Background()
	mine, err := svc.Submit(ctx, SubmitRequest{
		Kind:        models.SubmitterUser,
		SubmitterID: "u1",
		Answers:     []SubmitAnswer{{QuestionID: 1, RawValue: "4"}, {QuestionID: 2, RawValue: "Yes"}},
	})
	require.NoError(t, err)
	guest, err := svc.Submit(ctx, SubmitRequest{Kind: models.SubmitterGuest, Answers: []SubmitAnswer{}})
	require.NoError(t, err)

	sub, err := svc.GetFeedback(ctx, Requester{UserID: "u1", Role: models.RoleUser}, mine.SubmissionID)
	require.NoError(t, err)
	require.Len(t, sub.Answers, 2)
	assert.Equal(t, 0.5, sub.Answers[0].Score)

	_, err = svc.GetFeedback(ctx, Requester{UserID: "u2", Role: models.RoleUser}, mine.SubmissionID)
	assert.True(t, IsKind(err, KindForbidden))
	_, err = svc.GetFeedback(ctx, Requester{UserID: "u1", Role: models.RoleUser}, guest.SubmissionID)
	assert.True(t, IsKind(err, KindForbidden))

	_, err = svc.GetFeedback(ctx, Requester{UserID: "a", Role: models.RoleAdmin}, guest.SubmissionID)
	assert.NoError(t, err)
	_, err = svc.GetFeedback(ctx, Requester{UserID: "a", Role: models.RoleAdmin}, "missing")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestSubmitRecordsOutcomeMetrics(t *testing.T) {
	committed := metrics.SubmissionsTotal.WithLabelValues("guest", metrics.StatusCommitted)
	rolledBack := metrics.SubmissionsTotal.WithLabelValues("guest", metrics.StatusRolledBack)
	before, beforeRB := testutil.ToFloat64(committed), testutil.ToFloat64(rolledBack)

	ss := newStubSubmissionStore()
	_, err := newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 1, RawValue: "5"}},
	})
	require.NoError(t, err)

	ss.failAnswerN = 1
	_, err = newTestFeedbackService(testQuestions(), ss).Submit(context.Background(), SubmitRequest{
		Kind:    models.SubmitterGuest,
		Answers: []SubmitAnswer{{QuestionID: 1, RawValue: "5"}},
	})
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(committed))
	assert.Equal(t, beforeRB+1, testutil.ToFloat64(rolledBack))
}
