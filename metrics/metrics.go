// Package metrics holds the Prometheus collectors of the coordinator. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransfersInitiated *prometheus.CounterVec
	TransfersRejected  *prometheus.CounterVec
	FeeQuotes          *prometheus.CounterVec
	Refreshes          *prometheus.CounterVec
	TrackedTxs         prometheus.Gauge
	GatewayCalls       *prometheus.CounterVec
	GatewayLatency     *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersInitiated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_transfers_initiated_total",
				Help: "Total number of transfers accepted by the ledger, by kind",
			}, []string{"kind"}),
		TransfersRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_transfers_rejected_total",
				Help: "Total number of transfers rejected before or during submission, by reason",
			}, []string{"reason"}),
		FeeQuotes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_fee_quotes_total",
				Help: "Total number of fee quotes, by source of the token fee",
			}, []string{"source"}),
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_tracker_refreshes_total",
				Help: "Total number of transaction refreshes, by result",
			}, []string{"result"}),
		TrackedTxs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_tracker_transactions",
				Help: "Current number of tracked bridge transactions",
			}),
		GatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_gateway_calls_total",
				Help: "Total number of ledger calls, by chain, operation and result",
			}, []string{"chain", "op", "result"}),
		GatewayLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_gateway_call_duration_seconds",
				Help:    "Duration of ledger calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			}, []string{"chain", "op"}),
	}
}

func (m *Metrics) TransferInitiated(kind string) {
	if m == nil {
		return
	}
	m.TransfersInitiated.WithLabelValues(kind).Inc()
}

func (m *Metrics) TransferRejected(reason string) {
	if m == nil {
		return
	}
	m.TransfersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) FeeQuoted(source string) {
	if m == nil {
		return
	}
	m.FeeQuotes.WithLabelValues(source).Inc()
}

func (m *Metrics) Refreshed(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetTracked(n int) {
	if m == nil {
		return
	}
	m.TrackedTxs.Set(float64(n))
}

// GatewayCall records the outcome and duration of a ledger call.
func (m *Metrics) GatewayCall(chain, op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayCalls.WithLabelValues(chain, op, result).Inc()
	m.GatewayLatency.WithLabelValues(chain, op).Observe(took.Seconds())
}
