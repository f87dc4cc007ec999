package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes used as the "status" label of SubmissionsTotal.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
	StatusRejected   = "rejected"
)

// Feedback Metrics
var (
	// SubmissionsTotal tracks submission attempts by submitter kind and outcome
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Total feedback submissions by submitter type and outcome",
		},
		[]string{"kind", "status"},
	)

	// OverallSentiment tracks the distribution of committed overall scores
	OverallSentiment = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedback_overall_sentiment",
			Help:    "Overall sentiment score of committed submissions",
			Buckets: []float64{-1, -0.6, -0.2, 0, 0.2, 0.6, 1},
		},
	)

	// AnswersScoredTotal tracks scored answers by question type and label
	AnswersScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_answers_scored_total",
			Help: "Total scored answers by question type and sentiment label",
		},
		[]string{"type", "label"},
	)

	// AnswersSkippedTotal tracks answers dropped for unknown or inactive questions
	AnswersSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_answers_skipped_total",
			Help: "Total answers skipped because their question is unknown or inactive",
		},
	)
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests by method, route pattern and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)
