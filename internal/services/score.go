package services

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/sentiment"
)

// NeutralBand is the half-width of the score range labelled neutral. It applies
// to every per-answer rule and to the overall submission score.
const NeutralBand = 0.2

// Weights of each answer type in the overall average.
const (
	WeightDefault = 1.0
	WeightText    = 1.0
	WeightChoice  = 1.2
	WeightRating  = 1.5
)

// Sentiment is the scored form of one answer.
type Sentiment struct {
	Score  float64
	Label  models.Label
	Weight float64
}

func neutral(weight float64) Sentiment {
	return Sentiment{Score: 0, Label: models.LabelNeutral, Weight: weight}
}

// LabelFor buckets a score using the shared neutral band.
func LabelFor(score float64) models.Label {
	switch {
	case score > NeutralBand:
		return models.LabelPositive
	case score < -NeutralBand:
		return models.LabelNegative
	default:
		return models.LabelNeutral
	}
}

// NormalizeTextScore maps a raw lexicon score onto [-1, 1]. The +1 shift leans
// ambiguous text towards positive.
func NormalizeTextScore(raw float64) float64 {
	return clamp((raw+1)/3, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rule scores raw answer values for one question type.
type Rule interface {
	Evaluate(raw string) Sentiment
	questionType() models.QuestionType
}

// TextRule scores free text through the lexicon analyzer.
type TextRule struct {
	Analyzer sentiment.Analyzer
}

func (r TextRule) questionType() models.QuestionType { return models.QuestionText }

func (r TextRule) Evaluate(raw string) Sentiment {
	if strings.TrimSpace(raw) == "" || r.Analyzer == nil {
		return neutral(WeightDefault)
	}
	score := NormalizeTextScore(r.Analyzer.Analyze(raw).Score)
	return Sentiment{Score: score, Label: LabelFor(score), Weight: WeightText}
}

// RatingRule scores a 1..5 rating. Anything else is neutral at the default weight.
type RatingRule struct{}

func (RatingRule) questionType() models.QuestionType { return models.QuestionRating }

func (RatingRule) Evaluate(raw string) Sentiment {
	rating, ok := leadingInt(raw)
	if !ok || rating < 1 || rating > 5 {
		return neutral(WeightDefault)
	}
	score := float64(rating-3) / 2
	return Sentiment{Score: score, Label: LabelFor(score), Weight: WeightRating}
}

// leadingInt reads the integer prefix of s after leading whitespace: an
// optional sign, then decimal digits (or hex digits after "0x"). Trailing text
// is ignored, so "4.5" and "4 stars" both read as 4.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base, digits := 10, "0123456789"
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, digits = 16, "0123456789abcdefABCDEF"
		s = s[2:]
	}
	end := 0
	for end < len(s) && strings.IndexByte(digits, s[end]) >= 0 {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		// overflow: far outside any rating range
		return math.MaxInt32, true
	}
	if neg {
		n = -n
	}
	return int(n), true
}

// ChoiceRule scores a categorical answer by keyword first and by the answer's
// position in Options second.
type ChoiceRule struct {
	Options []string
}

func (ChoiceRule) questionType() models.QuestionType { return models.QuestionChoice }

func (r ChoiceRule) Evaluate(raw string) Sentiment {
	answer := strings.ToLower(raw)
	switch {
	case strings.Contains(answer, "yes"):
		return Sentiment{Score: 1, Label: models.LabelPositive, Weight: WeightChoice}
	case strings.Contains(answer, "no"):
		return Sentiment{Score: -1, Label: models.LabelNegative, Weight: WeightChoice}
	case strings.Contains(answer, "sometimes"),
		strings.Contains(answer, "partially"),
		strings.Contains(answer, "not sure"):
		return neutral(WeightChoice)
	}
	idx := indexOf(r.Options, raw)
	if idx < 0 || len(r.Options) < 2 {
		return neutral(WeightChoice)
	}
	score := float64(idx)/float64(len(r.Options)-1)*2 - 1
	return Sentiment{Score: score, Label: LabelFor(score), Weight: WeightChoice}
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// RuleFor selects the scoring rule for q. It returns false for questions that
// must not be scored: missing, inactive or of an unknown type.
func RuleFor(q *models.Question, analyzer sentiment.Analyzer) (Rule, bool) {
	if q == nil || !q.Active {
		return nil, false
	}
	switch q.Type {
	case models.QuestionText:
		return TextRule{Analyzer: analyzer}, true
	case models.QuestionRating:
		return RatingRule{}, true
	case models.QuestionChoice:
		return ChoiceRule{Options: q.Options}, true
	}
	return nil, false
}

// Aggregate folds per-answer sentiments into the weighted submission result.
type Aggregate struct {
	WeightedSum float64
	WeightTotal float64
}

func (a *Aggregate) Add(s Sentiment) {
	a.WeightedSum += s.Score * s.Weight
	a.WeightTotal += s.Weight
}

// Overall returns the weighted mean and its label; 0/neutral when nothing was added.
func (a *Aggregate) Overall() (float64, models.Label) {
	if a.WeightTotal <= 0 {
		return 0, models.LabelNeutral
	}
	score := a.WeightedSum / a.WeightTotal
	return score, LabelFor(score)
}
