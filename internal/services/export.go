package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
)

const (
	ExportLong = "long"
	ExportWide = "wide"
)

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders stored feedback as CSV for offline analysis.
type ExportService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewExportService(store AnalyticsStore) *ExportService {
	return &ExportService{store: store, now: time.Now}
}

// ExportCSV exports every submission. "long" writes one row per answer,
// "wide" one row per submission with a column per question.
func (s *ExportService) ExportCSV(ctx context.Context, format string) (*ExportResult, error) {
	if format == "" {
		format = ExportLong
	}
	if format != ExportLong && format != ExportWide {
		return nil, NewInvalidError("format must be long or wide")
	}
	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	subs, err := s.store.ListSubmissionsWithAnswers(ctx, "")
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}

	var data []byte
	if format == ExportWide {
		data, err = ExportWideCSV(questions, subs)
	} else {
		data, err = ExportLongCSV(subs)
	}
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("feedback_%s_%s.csv", format, s.now().UTC().Format("20060102")),
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func submitterOf(sub *models.Submission) string {
	if sub.SubmitterID != nil {
		return *sub.SubmitterID
	}
	return ""
}

// ExportLongCSV renders one row per scored answer.
func ExportLongCSV(subs []*models.Submission) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{
		"feedback_id", "submitter_type", "submitter_id", "created_at",
		"question_id", "answer_text", "sentiment_score", "sentiment_label",
	})
	for _, sub := range subs {
		for _, a := range sub.Answers {
			rec := []string{
				sub.ID,
				string(sub.Kind),
				submitterOf(sub),
				sub.CreatedAt.UTC().Format(time.RFC3339),
				strconv.FormatInt(a.QuestionID, 10),
				sanitizeCell(a.RawValue),
				formatScore(a.Score),
				string(a.Label),
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders one row per submission. Question columns follow
// question id order and hold the answer score; the overall columns close the row.
func ExportWideCSV(questions []*models.Question, subs []*models.Submission) ([]byte, error) {
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"feedback_id", "submitter_type", "submitter_id", "created_at"}
	for _, id := range ids {
		header = append(header, "q"+strconv.FormatInt(id, 10))
	}
	header = append(header, "overall_score", "overall_label")
	_ = w.Write(header)

	for _, sub := range subs {
		scores := make(map[int64]float64, len(sub.Answers))
		for _, a := range sub.Answers {
			scores[a.QuestionID] = a.Score
		}
		row := make([]string, 0, len(header))
		row = append(row, sub.ID, string(sub.Kind), submitterOf(sub), sub.CreatedAt.UTC().Format(time.RFC3339))
		for _, id := range ids {
			if v, ok := scores[id]; ok {
				row = append(row, formatScore(v))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, formatScore(sub.OverallScore), string(sub.OverallLabel))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// sanitizeCell keeps spreadsheet apps from evaluating free text as a formula.
func sanitizeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@':
		return "'" + v
	}
	return v
}
