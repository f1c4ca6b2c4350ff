package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_question_duration_seconds",
			Help:    "Question processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)

	QuestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_question_total",
			Help: "Total number of questions processed",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_answer_cache_hits_total",
			Help: "Total answer cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_answer_cache_misses_total",
			Help: "Total answer cache misses",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)

	RetrievalHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_retrieval_hits",
			Help:    "Number of retrieval hits per question",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ConfidenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_confidence_total",
			Help: "Answers by confidence label",
		},
		[]string{"confidence"},
	)

	TokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_tokens_used_total",
			Help: "Total tokens consumed by answer composition",
		},
		[]string{"type"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_documents_ingested_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_chunks_indexed_total",
			Help: "Total chunks written to the vector index",
		},
	)
)

func Init() {
	prometheus.MustRegister(QuestionDuration)
	prometheus.MustRegister(QuestionTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(RetrievalHits)
	prometheus.MustRegister(ConfidenceTotal)
	prometheus.MustRegister(TokensUsed)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIndexed)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
