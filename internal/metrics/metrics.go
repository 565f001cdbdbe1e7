// Package metrics exports ledger activity as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "giftledger"

// Recorder implements ledger.OperationLogger by counting operations.
type Recorder struct {
	operations      *prometheus.CounterVec
	tokensMoved     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// NewRecorder registers the ledger series on registerer.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	factory := promauto.With(registerer)
	return &Recorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"operation", "status"}),
		tokensMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_moved_total",
			Help:      "Tokens moved by committed purchases and top-ups.",
		}, []string{"operation"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Failed ledger operations by failure kind.",
		}, []string{"operation", "reason"}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Gift-received events that could not be delivered.",
		}),
	}
}

// LogOperation updates the counters for one operation.
func (recorder *Recorder) LogOperation(_ context.Context, entry ledger.OperationLog) {
	if entry.Operation == ledger.OperationPublishEvent {
		recorder.publishFailures.Inc()
		return
	}
	recorder.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Error != nil {
		recorder.failures.WithLabelValues(entry.Operation, failureReason(entry.Error)).Inc()
		return
	}
	if entry.Status != ledger.OperationStatusOK || entry.Amount <= 0 {
		return
	}
	switch entry.Operation {
	case ledger.OperationPurchaseGift, ledger.OperationTopUp:
		recorder.tokensMoved.WithLabelValues(entry.Operation).Add(float64(entry.Amount.Int64()))
	}
}

// Handler serves the series gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var failureReasons = []struct {
	source error
	reason string
}{
	{source: ledger.ErrGiftNotFound, reason: "gift_not_found"},
	{source: ledger.ErrInvalidQuantity, reason: "invalid_quantity"},
	{source: ledger.ErrAccountNotFound, reason: "account_not_found"},
	{source: ledger.ErrInsufficientFunds, reason: "insufficient_funds"},
	{source: ledger.ErrRoomNotFound, reason: "room_not_found"},
	{source: ledger.ErrStoreUnavailable, reason: "store_unavailable"},
	{source: ledger.ErrIdempotencyKeyMismatch, reason: "idempotency_key_mismatch"},
}

func failureReason(err error) string {
	for _, candidate := range failureReasons {
		if errors.Is(err, candidate.source) {
			return candidate.reason
		}
	}
	return "other"
}
