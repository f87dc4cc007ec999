package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// questionRef accepts a question id sent either as a number or a numeric
// string. Anything else decodes to 0, which the service skips.
type questionRef int64

func (q *questionRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		*q = 0
		return nil
	}
	*q = questionRef(n)
	return nil
}

type answerPayload struct {
	QuestionID questionRef     `json:"question_id"`
	AnswerText json.RawMessage `json:"answer_text"`
}

type submitPayload struct {
	SubmitterType string          `json:"submitter_type"`
	SubmitterID   json.RawMessage `json:"submitter_id"`
	Answers       []answerPayload `json:"answers"`
}

// scalarText renders a JSON string, number or bool as plain text. Null,
// missing, object and array values report false.
func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// toSubmitRequest converts the wire payload. Answers without a usable
// answer_text are dropped here.
func (p submitPayload) toSubmitRequest() services.SubmitRequest {
	req := services.SubmitRequest{
		Kind: models.SubmitterKind(strings.ToLower(strings.TrimSpace(p.SubmitterType))),
	}
	req.SubmitterID, _ = scalarText(p.SubmitterID)
	if p.Answers == nil {
		return req
	}
	req.Answers = make([]services.SubmitAnswer, 0, len(p.Answers))
	for _, a := range p.Answers {
		text, ok := scalarText(a.AnswerText)
		if !ok {
			continue
		}
		req.Answers = append(req.Answers, services.SubmitAnswer{QuestionID: int64(a.QuestionID), RawValue: text})
	}
	return req
}
