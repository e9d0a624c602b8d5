package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAfterInit(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitWith(reg)

	ObserveTransaction("debit", "success", "", 10*time.Millisecond)
	ObserveTransaction("debit", "failed", "INSUFFICIENT_BALANCE", 0)
	IncrementReplayCache("hit")
	IncrementEventPublish("published")
	SetInvariantViolations(2)
	SetStalePending(3)
	IncrementWorkerRun("reconciliation", "success")

	assert.Equal(t, 1.0, testutil.ToFloat64(transactionCounter.WithLabelValues("debit", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(transactionCounter.WithLabelValues("debit", "failed", "INSUFFICIENT_BALANCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(replayCacheCounter.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(eventPublishCounter.WithLabelValues("published")))
	assert.Equal(t, 2.0, testutil.ToFloat64(invariantViolationsGauge))
	assert.Equal(t, 3.0, testutil.ToFloat64(stalePendingGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(workerRunCounter.WithLabelValues("reconciliation", "success")))

	count, err := testutil.GatherAndCount(reg, "ledger_transaction_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
