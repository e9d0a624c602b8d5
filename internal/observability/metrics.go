package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	transactionCounter       *prometheus.CounterVec
	transactionDuration      *prometheus.HistogramVec
	replayCacheCounter       *prometheus.CounterVec
	eventPublishCounter      *prometheus.CounterVec
	invariantViolationsGauge prometheus.Gauge
	stalePendingGauge        prometheus.Gauge
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors with the default registerer.
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

// InitWith registers all collectors with reg. Only the first call has effect.
func InitWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transactionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Processed transaction requests by operation and outcome",
		}, []string{"operation", "outcome", "error_code"})

		transactionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Time from request validation to commit",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"})

		replayCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_replay_cache_events_total",
			Help: "Replay cache lookups and writes by outcome",
		}, []string{"outcome"})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_event_publish_total",
			Help: "Transaction events handed to the broker by result",
		}, []string{"result"})

		invariantViolationsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_invariant_violations",
			Help: "Accounts breaking balance invariants at the last reconciliation",
		})

		stalePendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_stale_pending_transactions",
			Help: "Transactions stuck in pending at the last reconciliation",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		reg.MustRegister(
			httpDurationHistogram,
			transactionCounter,
			transactionDuration,
			replayCacheCounter,
			eventPublishCounter,
			invariantViolationsGauge,
			stalePendingGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveTransaction counts one transaction outcome. A zero duration is not
// recorded in the latency histogram.
func ObserveTransaction(operation, outcome, errorCode string, duration time.Duration) {
	if transactionCounter == nil {
		return
	}
	transactionCounter.WithLabelValues(operation, outcome, errorCode).Inc()
	if duration > 0 {
		transactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

func IncrementReplayCache(outcome string) {
	if replayCacheCounter == nil {
		return
	}
	replayCacheCounter.WithLabelValues(outcome).Inc()
}

func IncrementEventPublish(result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(result).Inc()
}

func SetInvariantViolations(n int) {
	if invariantViolationsGauge == nil {
		return
	}
	invariantViolationsGauge.Set(float64(n))
}

func SetStalePending(n int64) {
	if stalePendingGauge == nil {
		return
	}
	stalePendingGauge.Set(float64(n))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
