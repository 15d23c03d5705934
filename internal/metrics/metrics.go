// Package metrics holds the Prometheus collectors for the recommendation
// engine and an in-process latency window reported by the health endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardsynergy_scoring_duration_seconds",
			Help:    "Time spent scoring a candidate pool",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"scorer"},
	)

	RecommendationsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardsynergy_recommendations_returned",
			Help:    "Number of recommendations returned per request",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		},
		[]string{"scorer"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardsynergy_cache_lookups_total",
			Help: "Cache lookups by key kind and result",
		},
		[]string{"kind", "result"}, // result: "hit", "miss", "error"
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardsynergy_llm_calls_total",
			Help: "Text generation calls by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "ok", "error", "timeout", "open"
	)

	ThemesAccepted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardsynergy_themes_accepted",
			Help:    "Themes accepted per classification",
			Buckets: []float64{0, 1, 2, 3},
		},
	)

	Votes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardsynergy_votes_total",
			Help: "Votes by target type and outcome",
		},
		[]string{"target_type", "outcome"}, // outcome: "recorded", "duplicate", "not_found", "invalid", "error"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardsynergy_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)
)

// scoringWindows keeps recent scoring latencies per scorer for the health
// report.
var scoringWindows = map[string]*Window{
	"synergy":               NewWindow(2048),
	"functional_similarity": NewWindow(2048),
}

// RecordScoring records one pool evaluation.
func RecordScoring(scorer string, duration time.Duration, returned int) {
	ScoringDuration.WithLabelValues(scorer).Observe(duration.Seconds())
	RecommendationsReturned.WithLabelValues(scorer).Observe(float64(returned))
	if w, ok := scoringWindows[scorer]; ok {
		w.Record(duration)
	}
}

// ScoringLatency summarizes recent scoring latencies by scorer.
func ScoringLatency() map[string]Summary {
	out := make(map[string]Summary, len(scoringWindows))
	for name, w := range scoringWindows {
		out[name] = w.Summary()
	}
	return out
}

// RecordCacheLookup counts a cache lookup.
func RecordCacheLookup(kind string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordLLMCall counts a generation call.
func RecordLLMCall(provider, outcome string) {
	LLMCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordVote counts a vote attempt.
func RecordVote(targetType, outcome string) {
	Votes.WithLabelValues(targetType, outcome).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordThemesAccepted records how many themes one classification kept.
func RecordThemesAccepted(n int) {
	ThemesAccepted.Observe(float64(n))
}
