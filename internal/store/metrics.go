package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// writeFailures counts durable writes that failed after the cache was updated.
	writeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newcomer",
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Member file writes that failed; the in-memory update was kept",
	})

	// rejectedWrites counts saves and joins dropped for lacking a member id.
	rejectedWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newcomer",
		Subsystem: "store",
		Name:      "rejected_writes_total",
		Help:      "Member writes ignored because the record had no id",
	})

	// loadSkipped counts member files skipped during Initialize.
	loadSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newcomer",
		Subsystem: "store",
		Name:      "load_skipped_total",
		Help:      "Member files that failed to parse or validate at startup",
	})
)
