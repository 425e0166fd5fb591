// Package metrics holds the Prometheus collectors of the ledger and the
// lightweight /metrics + /healthz listener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Placement results used as the "result" label.
const (
	ResultPlaced       = "placed"
	ResultRejected     = "rejected"
	ResultInsufficient = "insufficient_funds"
	ResultError        = "error"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BetsPlaced       *prometheus.CounterVec
	BetsSettled      *prometheus.CounterVec
	MatchupFallbacks prometheus.Counter
	PlacementSeconds prometheus.Histogram
	WSClients        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BetsPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsbook_bets_placed_total",
				Help: "Bet placement attempts by result",
			},
			[]string{"result"},
		),
		BetsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsbook_bets_settled_total",
				Help: "Settled bets by outcome",
			},
			[]string{"outcome"},
		),
		MatchupFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sportsbook_matchup_fallback_total",
				Help: "Placements stored with the unknown matchup label",
			},
		),
		PlacementSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sportsbook_placement_seconds",
				Help:    "Latency of PlaceBet including the matchup lookup",
				Buckets: prometheus.DefBuckets,
			},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sportsbook_ws_clients",
				Help: "Connected WebSocket clients",
			},
		),
	}
	reg.MustRegister(m.BetsPlaced, m.BetsSettled, m.MatchupFallbacks, m.PlacementSeconds, m.WSClients)
	return m
}

// ObservePlacement records one PlaceBet call.
func (m *Metrics) ObservePlacement(result string, started time.Time) {
	if m == nil {
		return
	}
	m.BetsPlaced.WithLabelValues(result).Inc()
	m.PlacementSeconds.Observe(time.Since(started).Seconds())
}

// MatchupFallback counts a placement that could not name its game.
func (m *Metrics) MatchupFallback() {
	if m == nil {
		return
	}
	m.MatchupFallbacks.Inc()
}

// Settled counts one resolved bet.
func (m *Metrics) Settled(outcome string) {
	if m == nil {
		return
	}
	m.BetsSettled.WithLabelValues(outcome).Inc()
}

// ClientConnected and ClientDisconnected track the WebSocket gauge.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.WSClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.WSClients.Dec()
}
