package services

import (
	"context"
	"sort"
	"strings"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
)

// AnalyticsStore provides the raw rows analytics are computed from. Submissions
// must carry their answers.
type AnalyticsStore interface {
	ListQuestions(ctx context.Context) ([]*models.Question, error)
	ListSubmissionsWithAnswers(ctx context.Context, submitterID string) ([]*models.Submission, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type LabelCount struct {
	Label models.Label `json:"label"`
	Count int          `json:"count"`
}

type QuestionAverage struct {
	QuestionID   int64   `json:"question_id"`
	QuestionText string  `json:"question_text"`
	AvgScore     float64 `json:"avg_score"`
}

type DailyAverage struct {
	Day      string  `json:"day"`
	AvgScore float64 `json:"avg_score"`
}

// AnalyticsSummary is the chart data: label distribution, per-question
// averages and per-day overall averages.
type AnalyticsSummary struct {
	Pie  []LabelCount      `json:"pie"`
	Bar  []QuestionAverage `json:"bar"`
	Line []DailyAverage    `json:"line"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// UserAnalytics summarizes the registered submissions of one user.
func (s *AnalyticsService) UserAnalytics(ctx context.Context, userID string) (*AnalyticsSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewUnauthorizedError("No token")
	}
	return s.summary(ctx, userID)
}

// GlobalAnalytics summarizes every submission.
func (s *AnalyticsService) GlobalAnalytics(ctx context.Context) (*AnalyticsSummary, error) {
	return s.summary(ctx, "")
}

func (s *AnalyticsService) summary(ctx context.Context, submitterID string) (*AnalyticsSummary, error) {
	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	subs, err := s.store.ListSubmissionsWithAnswers(ctx, submitterID)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return &AnalyticsSummary{
		Pie:  buildLabelCounts(subs),
		Bar:  buildQuestionAverages(questions, subs),
		Line: buildDailyAverages(subs),
	}, nil
}

var labelOrder = []models.Label{models.LabelPositive, models.LabelNeutral, models.LabelNegative}

func buildLabelCounts(subs []*models.Submission) []LabelCount {
	counts := map[models.Label]int{}
	for _, sub := range subs {
		counts[sub.OverallLabel]++
	}
	out := make([]LabelCount, 0, len(counts))
	for _, l := range labelOrder {
		if n, ok := counts[l]; ok {
			out = append(out, LabelCount{Label: l, Count: n})
			delete(counts, l)
		}
	}
	// labels outside the known set still show up, sorted for stable output
	rest := make([]string, 0, len(counts))
	for l := range counts {
		rest = append(rest, string(l))
	}
	sort.Strings(rest)
	for _, l := range rest {
		out = append(out, LabelCount{Label: models.Label(l), Count: counts[models.Label(l)]})
	}
	return out
}

func buildQuestionAverages(questions []*models.Question, subs []*models.Submission) []QuestionAverage {
	text := make(map[int64]string, len(questions))
	for _, q := range questions {
		text[q.ID] = q.Text
	}
	sums := map[int64]float64{}
	counts := map[int64]int{}
	for _, sub := range subs {
		for _, a := range sub.Answers {
			if _, known := text[a.QuestionID]; !known {
				continue
			}
			sums[a.QuestionID] += a.Score
			counts[a.QuestionID]++
		}
	}
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]QuestionAverage, 0, len(ids))
	for _, id := range ids {
		out = append(out, QuestionAverage{
			QuestionID:   id,
			QuestionText: text[id],
			AvgScore:     sums[id] / float64(counts[id]),
		})
	}
	return out
}

func buildDailyAverages(subs []*models.Submission) []DailyAverage {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, sub := range subs {
		day := sub.CreatedAt.UTC().Format("2006-01-02")
		sums[day] += sub.OverallScore
		counts[day]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DailyAverage, 0, len(days))
	for _, d := range days {
		out = append(out, DailyAverage{Day: d, AvgScore: sums[d] / float64(counts[d])})
	}
	return out
}
