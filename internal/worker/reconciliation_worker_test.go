package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	runs atomic.Int32
	err  error
}

func (c *countingReconciler) Run(context.Context) (*service.ReconciliationReport, error) {
	c.runs.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &service.ReconciliationReport{CheckedAt: time.Now()}, nil
}

func TestReconciliationWorkerRunsImmediatelyAndOnTicks(t *testing.T) {
	rec := &countingReconciler{}
	w := NewReconciliationWorker(rec).WithInterval(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestReconciliationWorkerStopsOnContextCancel(t *testing.T) {
	rec := &countingReconciler{err: errors.New("store unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	stop := NewReconciliationWorker(rec).WithInterval(time.Hour).Run(ctx)
	defer stop()

	require.Eventually(t, func() bool { return rec.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rec.runs.Load())
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	w := NewReconciliationWorker(&countingReconciler{}).WithInterval(0)
	assert.Equal(t, DefaultInterval, w.interval)
}
