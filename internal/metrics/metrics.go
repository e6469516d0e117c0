// Package metrics holds the sensor's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics (registered once).
var (
	FilesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klsensor_files_scanned_total",
			Help: "Total files analyzed by directory sweeps",
		},
	)
	ProcessesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klsensor_processes_scanned_total",
			Help: "Total process executables analyzed",
		},
	)
	ThreatsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klsensor_threats_detected_total",
			Help: "Total verdicts that cleared the alert threshold",
		},
		[]string{"source"},
	)
	AlertsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klsensor_alerts_generated_total",
			Help: "Total alerts dispatched successfully",
		},
		[]string{"type", "severity"},
	)
	AlertHandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klsensor_alert_handler_failures_total",
			Help: "Total alert handler failures",
		},
		[]string{"handler"},
	)
	PredictionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klsensor_prediction_errors_total",
			Help: "Total predictions that degraded to a neutral result",
		},
	)
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klsensor_sweep_duration_seconds",
			Help:    "Duration of directory and process sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"kind"},
	)
)

// Sources and sweep kinds used as label values.
const (
	SourceFile    = "file"
	SourceProcess = "process"

	KindDirectory = "directory"
	KindProcess   = "process"
)

func init() {
	prometheus.MustRegister(FilesScanned)
	prometheus.MustRegister(ProcessesScanned)
	prometheus.MustRegister(ThreatsDetected)
	prometheus.MustRegister(AlertsGenerated)
	prometheus.MustRegister(AlertHandlerFailures)
	prometheus.MustRegister(PredictionErrors)
	prometheus.MustRegister(SweepDuration)
}
