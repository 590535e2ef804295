package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashgen_jobs_submitted_total",
			Help: "Total analysis jobs submitted",
		},
	)

	JobsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashgen_jobs_completed_total",
			Help: "Total analysis jobs completed",
		},
	)

	JobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashgen_jobs_failed_total",
			Help: "Total analysis jobs failed, by stage",
		},
		[]string{"stage"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashgen_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	ChartsRecommended = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashgen_charts_recommended",
			Help:    "Charts in an assembled dashboard",
			Buckets: []float64{0, 1, 2, 4, 8, 12},
		},
	)

	ChatQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashgen_chat_queries_total",
			Help: "Chat queries processed, by status",
		},
		[]string{"status"},
	)

	ChatCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashgen_chat_cache_hits_total",
			Help: "Chat answers served from cache",
		},
	)

	ChatCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashgen_chat_cache_misses_total",
			Help: "Chat queries that missed the cache",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashgen_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

func Init() {
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(JobsFailed)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(ChartsRecommended)
	prometheus.MustRegister(ChatQueries)
	prometheus.MustRegister(ChatCacheHits)
	prometheus.MustRegister(ChatCacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
