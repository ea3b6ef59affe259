package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tictactoe"

type Metrics struct {
	matchesStarted prometheus.Counter
	matchesEnded   *prometheus.CounterVec
	activeMatches  prometheus.Gauge
	movesApplied   prometheus.Counter
	movesRejected  prometheus.Counter
}

// New creates the match metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Total matches started",
		}),
		matchesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_ended_total",
			Help:      "Total matches ended, by reason",
		}, []string{"reason"}),
		activeMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_matches",
			Help:      "Matches currently running",
		}),
		movesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_applied_total",
			Help:      "Moves placed on a board",
		}),
		movesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_rejected_total",
			Help:      "Moves dropped as out of range or on an occupied cell",
		}),
	}

	reg.MustRegister(m.matchesStarted, m.matchesEnded, m.activeMatches, m.movesApplied, m.movesRejected)

	return m
}

func (that *Metrics) MatchStarted() {
	that.matchesStarted.Inc()
	that.activeMatches.Inc()
}

func (that *Metrics) MatchEnded(reason string) {
	that.matchesEnded.WithLabelValues(reason).Inc()
	that.activeMatches.Dec()
}

func (that *Metrics) MoveApplied() {
	that.movesApplied.Inc()
}

func (that *Metrics) MoveRejected() {
	that.movesRejected.Inc()
}
