// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_challenges_total",
			Help: "Challenges by outcome (issued, accepted, declined, expired, rate_limited)",
		},
		[]string{"outcome"},
	)
	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_matches_started_total",
			Help: "Matches started by kind",
		},
		[]string{"kind"},
	)
	MatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_matches_finished_total",
			Help: "Matches finished by kind and reason (win, forfeit, timeout)",
		},
		[]string{"kind", "reason"},
	)
	LiveMatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rps_live_matches",
			Help: "Matches currently held in memory",
		},
	)
	SettlementFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_settlement_failures_total",
			Help: "Settlements that failed after all retries",
		},
	)
	RecordsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_records_swept_total",
			Help: "Orphaned ongoing match records marked abandoned",
		},
	)
)

func init() {
	prometheus.MustRegister(ChallengesTotal)
	prometheus.MustRegister(MatchesStarted)
	prometheus.MustRegister(MatchesFinished)
	prometheus.MustRegister(LiveMatches)
	prometheus.MustRegister(SettlementFailures)
	prometheus.MustRegister(RecordsSwept)
}
