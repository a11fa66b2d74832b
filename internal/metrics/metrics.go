// Package metrics records run counters and exports them in the format
// read by the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var registry = prometheus.NewRegistry()

var (
	metricFilesEdited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "undeny_files_edited_total",
		Help: "Total number of deny files rewritten successfully",
	})
	metricLinesRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "undeny_lines_removed_total",
		Help: "Total number of deny list lines removed",
	})
	metricFileFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "undeny_file_failures_total",
		Help: "Total number of deny files that could not be rewritten",
	})
	metricServiceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "undeny_service_failures_total",
		Help: "Total number of failed service control actions",
	}, []string{"action"})
	metricLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "undeny_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed run",
	})
)

func init() {
	registry.MustRegister(metricFilesEdited)
	registry.MustRegister(metricLinesRemoved)
	registry.MustRegister(metricFileFailures)
	registry.MustRegister(metricServiceFailures)
	registry.MustRegister(metricLastRun)
}

// FileEdited records one successfully rewritten deny file and the number
// of lines dropped from it.
func FileEdited(linesRemoved int) {
	metricFilesEdited.Inc()
	metricLinesRemoved.Add(float64(linesRemoved))
}

// FileFailed records a deny file that could not be rewritten.
func FileFailed() {
	metricFileFailures.Inc()
}

// ServiceFailed records a failed stop or start action.
func ServiceFailed(action string) {
	metricServiceFailures.WithLabelValues(action).Inc()
}

// RunCompleted stamps the last-run gauge.
func RunCompleted() {
	metricLastRun.SetToCurrentTime()
}

// WriteTextfile renders all registered metrics to path. The library
// writes via a temp file and rename, so collectors never see a partial
// file.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
