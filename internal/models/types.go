package models

import (
	"encoding/json"
	"strings"
	"time"
)

// QuestionType selects how an answer is scored.
type QuestionType string

const (
	QuestionText   QuestionType = "text"
	QuestionRating QuestionType = "rating"
	QuestionChoice QuestionType = "choice"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionRating, QuestionChoice:
		return true
	}
	return false
}

// Label is the coarse sentiment bucket attached to answers and submissions.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// SubmitterKind distinguishes anonymous feedback from feedback by a registered user.
type SubmitterKind string

const (
	SubmitterGuest SubmitterKind = "guest"
	SubmitterUser  SubmitterKind = "user"
)

// Valid reports whether k is a known submitter kind.
func (k SubmitterKind) Valid() bool {
	return k == SubmitterGuest || k == SubmitterUser
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Question is a feedback prompt. Options are only populated for choice questions
// and are already normalized into their display order.
type Question struct {
	ID      int64        `json:"question_id" yaml:"id"`
	Type    QuestionType `json:"question_type" yaml:"type"`
	Text    string       `json:"question_text" yaml:"text"`
	Options []string     `json:"options,omitempty" yaml:"options"`
	Active  bool         `json:"active" yaml:"active"`
}

// Answer is one scored response to one question within a submission.
type Answer struct {
	ID           int64   `json:"answer_id"`
	SubmissionID string  `json:"feedback_id"`
	QuestionID   int64   `json:"question_id"`
	RawValue     string  `json:"answer_text"`
	Score        float64 `json:"sentiment_score"`
	Label        Label   `json:"sentiment_label"`
	Position     int     `json:"position"`
}

// Submission is one complete feedback response.
type Submission struct {
	ID           string        `json:"feedback_id"`
	Kind         SubmitterKind `json:"submitter_type"`
	SubmitterID  *string       `json:"submitter_id"`
	Username     string        `json:"username,omitempty"`
	OverallScore float64       `json:"overall_sentiment_score"`
	OverallLabel Label         `json:"overall_sentiment_label"`
	CreatedAt    time.Time     `json:"created_at"`
	Answers      []Answer      `json:"answers,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseOptions decodes a stored option list. A JSON array is taken verbatim;
// anything else is split on commas and each entry trimmed. Empty entries are
// kept because an answer's ordinal is its index in this slice.
func ParseOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		list = strings.Split(raw, ",")
		for i := range list {
			list[i] = strings.TrimSpace(list[i])
		}
	}
	return NormalizeOptions(list)
}

// NormalizeOptions returns nil when no entry has content and the list
// unchanged otherwise.
func NormalizeOptions(list []string) []string {
	for _, o := range list {
		if strings.TrimSpace(o) != "" {
			return list
		}
	}
	return nil
}
