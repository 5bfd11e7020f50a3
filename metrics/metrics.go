package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "alpaca"
var subsystem = "streamspy"

var (
	// StreamsFiles stores how many streams files the harness attached to
	StreamsFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "streams_files",
			Help:      "Number of streams files attached by the polling harness",
		},
	)

	// FramesTotal counts handled frames partitioned by ring and outcome
	// (logged, filtered or deferred by the ordering gate)
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames_total",
		Help:      "Number of spied frames partitioned by ring and outcome",
	}, []string{"ring", "outcome"})

	// PassesTotal counts polling passes over every attached streams file
	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "passes_total",
		Help:      "Number of polling passes",
	})

	// IdlePassesTotal counts polling passes that found no work
	IdlePassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "idle_passes_total",
		Help:      "Number of polling passes that found no work",
	})

	// ConsumerBacklogBytes stores producer minus real consumer position per ring
	ConsumerBacklogBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "consumer_backlog_bytes",
		Help:      "Bytes written but not yet consumed by the real consumer",
	}, []string{"file", "ring"})

	// SpyLagBytes stores producer minus spy position per ring
	SpyLagBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "spy_lag_bytes",
		Help:      "Bytes written but not yet read by this spy",
	}, []string{"file", "ring"})
)
