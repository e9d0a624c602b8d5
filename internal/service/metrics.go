package service

import (
	"context"

	"github.com/ayo6706/ledger-engine/internal/observability"
)

var metricOutcomes = map[EventType]string{
	EventTransactionSucceeded: "success",
	EventTransactionFailed:    "failed",
	EventTransactionReplayed:  "replayed",
	EventTransactionAborted:   "aborted",
	EventRequestRejected:      "invalid",
}

// MetricsObserver feeds transaction outcomes into the Prometheus collectors.
type MetricsObserver struct{}

func (MetricsObserver) Observe(_ context.Context, e Event) {
	outcome, ok := metricOutcomes[e.Type]
	if !ok {
		return
	}
	observability.ObserveTransaction(string(e.Operation), outcome, string(e.ErrorCode), e.Duration)
}
