// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts frames processed by the engine per worker and verdict
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woolong_packets_total",
			Help: "Total number of frames processed by the reflector",
		},
		[]string{"worker", "verdict"},
	)

	// ReasonsTotal counts verdict reasons
	ReasonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woolong_reasons_total",
			Help: "Total number of verdicts by reason",
		},
		[]string{"reason"},
	)

	// EventsDroppedTotal counts observability records lost to a full partition
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woolong_events_dropped_total",
			Help: "Total number of event records dropped because a partition queue was full",
		},
		[]string{"partition"},
	)

	// TxErrorsTotal counts failed re-transmissions of reflected frames
	TxErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woolong_tx_errors_total",
			Help: "Total number of reflected frames that could not be written",
		},
		[]string{"worker"},
	)

	// CaptureDropsTotal mirrors kernel ring drops reported by the socket
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woolong_capture_drops_total",
			Help: "Total number of frames the kernel dropped before a worker read them",
		},
		[]string{"worker"},
	)

	// ProcessLatencySeconds measures engine latency per frame
	ProcessLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "woolong_process_latency_seconds",
			Help:    "Latency of a single reflector decision in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
	)

	// WorkersRunning tracks attached capture workers
	WorkersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "woolong_workers_running",
			Help: "Number of capture workers currently attached",
		},
	)
)
