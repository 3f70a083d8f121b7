package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_kb_retrieval_duration_seconds",
			Help:    "Document retrieval duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	RetrievalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_retrieval_total",
			Help: "Total retrieval requests by outcome",
		},
		[]string{"outcome"},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_kb_retrieval_results_count",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_documents_ingested_total",
			Help: "Documents that finished ingestion, by source and final status",
		},
		[]string{"source", "status"},
	)

	ExtractionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_extraction_failures_total",
			Help: "PDF/DOCX extractor failures",
		},
		[]string{"format"},
	)

	ScrapeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_scrape_total",
			Help: "Website fetches by outcome",
		},
		[]string{"outcome"},
	)

	ScrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_kb_scrape_duration_seconds",
			Help:    "Website fetch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	ChatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_chat_turns_total",
			Help: "Chat turns by grounding outcome",
		},
		[]string{"grounding"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_kb_llm_duration_seconds",
			Help:    "LLM completion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_kb_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatbot_kb_circuit_breaker_state",
			Help: "Current circuit breaker state per dependency",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RetrievalDuration)
		prometheus.MustRegister(RetrievalTotal)
		prometheus.MustRegister(RetrievalResultsCount)
		prometheus.MustRegister(DocumentsIngested)
		prometheus.MustRegister(ExtractionFailures)
		prometheus.MustRegister(ScrapeTotal)
		prometheus.MustRegister(ScrapeDuration)
		prometheus.MustRegister(ChatTurns)
		prometheus.MustRegister(LLMDuration)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(BreakerState)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
