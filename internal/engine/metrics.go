package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	joinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newcomer",
		Name:      "joins_total",
		Help:      "Join events by outcome",
	}, []string{"outcome"})

	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newcomer",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Scheduler cycles by result (ran, gated, busy)",
	}, []string{"result"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "newcomer",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of completed scheduler cycles",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newcomer",
		Name:      "decisions_total",
		Help:      "Engagement decisions by kind",
	}, []string{"kind"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newcomer",
		Name:      "deliveries_total",
		Help:      "Outreach delivery attempts by result",
	}, []string{"result"})
)
