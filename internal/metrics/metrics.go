package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Judge metrics
	judgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grporeward_judge_request_duration_seconds",
			Help:    "Judge request duration in seconds by outcome",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
		},
		[]string{"status"},
	)

	judgeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grporeward_judge_cache_hits_total",
			Help: "Judge verdicts served from the local cache",
		},
	)

	// Sample metrics
	sampleScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grporeward_sample_score",
			Help:    "Tensor-bound reward per sample by task",
			Buckets: []float64{-1, -0.5, 0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		},
		[]string{"task"},
	)

	sampleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grporeward_samples_total",
			Help: "Scored samples by task and outcome",
		},
		[]string{"task", "outcome"}, // outcome: "scored", "truncated", "failed"
	)

	overlongPenalties = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grporeward_overlong_penalties_total",
			Help: "Samples that received a non-zero overlong penalty",
		},
	)

	// Batch metrics
	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grporeward_batch_duration_seconds",
			Help:    "Batch reward computation duration by stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~330s
		},
		[]string{"stage"}, // "sequential", "parallel", "total"
	)

	cachedBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grporeward_cached_batches_total",
			Help: "Batches answered from a precomputed reward tensor",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grporeward_active_workers",
			Help: "Pool workers currently scoring a sample",
		},
	)

	logSinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grporeward_log_sink_errors_total",
			Help: "Best-effort log writes that failed",
		},
		[]string{"log"}, // "train", "verifier"
	)
)

// Collector provides convenience methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordJudgeRequest records a judge request duration
func (c *Collector) RecordJudgeRequest(duration time.Duration, success bool) {
	judgeRequestDuration.WithLabelValues(statusLabel(success)).Observe(duration.Seconds())
}

// IncJudgeCacheHit counts a cached verdict
func (c *Collector) IncJudgeCacheHit() {
	judgeCacheHits.Inc()
}

// RecordSample records the final reward and outcome of one sample
func (c *Collector) RecordSample(task, outcome string, score float64) {
	sampleOutcomes.WithLabelValues(task, outcome).Inc()
	sampleScores.WithLabelValues(task).Observe(score)
}

// IncOverlongPenalty counts a penalised sample
func (c *Collector) IncOverlongPenalty() {
	overlongPenalties.Inc()
}

// RecordBatchStage records batch processing duration by stage
func (c *Collector) RecordBatchStage(stage string, duration time.Duration) {
	batchDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncCachedBatch counts a short-circuited batch
func (c *Collector) IncCachedBatch() {
	cachedBatches.Inc()
}

// WorkerStarted and WorkerFinished track pool occupancy
func (c *Collector) WorkerStarted() {
	activeWorkers.Inc()
}

func (c *Collector) WorkerFinished() {
	activeWorkers.Dec()
}

// IncLogSinkError counts a dropped log write
func (c *Collector) IncLogSinkError(log string) {
	logSinkErrors.WithLabelValues(log).Inc()
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
