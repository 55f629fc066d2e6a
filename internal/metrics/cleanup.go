package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mode label values
const (
	ModeDryRun = "dry_run"
	ModeLive   = "live"
)

// Cleanup run metrics
var (
	// RunDuration tracks how long a full run takes
	RunDuration prometheus.Histogram

	// BytesFreedTotal counts bytes freed (or that would be freed in dry-run)
	BytesFreedTotal prometheus.Counter

	// EntriesCleanedTotal counts entries removed or previewed
	EntriesCleanedTotal prometheus.Counter

	// EntriesSkippedTotal counts skipped entries by reason
	EntriesSkippedTotal *prometheus.CounterVec

	// EntryBytes is the size distribution of cleaned entries
	EntryBytes prometheus.Histogram

	// TargetBytesFreedTotal counts bytes freed per cleanup target
	TargetBytesFreedTotal *prometheus.CounterVec

	// TargetsDiscovered is the number of targets found by the last run
	TargetsDiscovered prometheus.Gauge

	// LastRunTimestamp records the Unix time the last run finished
	LastRunTimestamp prometheus.Gauge

	// LastRunMode is 1 for the mode of the last run and 0 otherwise
	LastRunMode *prometheus.GaugeVec
)

func initCleanupMetrics() {
	RunDuration = NewDurationHistogram(
		"diskcleaner_run_duration_seconds",
		"Duration of cleanup runs in seconds.",
	)

	BytesFreedTotal = NewCounter(
		"diskcleaner_bytes_freed_total",
		"Total bytes freed by cleaned entries.",
	)

	EntriesCleanedTotal = NewCounter(
		"diskcleaner_entries_cleaned_total",
		"Total number of entries removed, or previewed in dry-run mode.",
	)

	EntriesSkippedTotal = NewCounterVec(
		"diskcleaner_entries_skipped_total",
		"Total number of entries skipped, by reason.",
		[]string{"reason"},
	)

	EntryBytes = NewBytesHistogram(
		"diskcleaner_entry_bytes",
		"Size of cleaned entries in bytes.",
	)

	TargetBytesFreedTotal = NewCounterVec(
		"diskcleaner_target_bytes_freed_total",
		"Total bytes freed per cleanup target.",
		[]string{"target"},
	)

	TargetsDiscovered = NewGauge(
		"diskcleaner_targets_discovered",
		"Number of cleanup targets discovered by the last run.",
	)

	LastRunTimestamp = NewGauge(
		"diskcleaner_last_run_timestamp",
		"Timestamp of the last cleanup run (Unix epoch seconds).",
	)

	LastRunMode = NewGaugeVec(
		"diskcleaner_last_run_mode",
		"Mode of the last run (1 for the active mode).",
		[]string{"mode"},
	)
}

func registerCleanupMetrics() {
	Registry.MustRegister(RunDuration)
	Registry.MustRegister(BytesFreedTotal)
	Registry.MustRegister(EntriesCleanedTotal)
	Registry.MustRegister(EntriesSkippedTotal)
	Registry.MustRegister(EntryBytes)
	Registry.MustRegister(TargetBytesFreedTotal)
	Registry.MustRegister(TargetsDiscovered)
	Registry.MustRegister(LastRunTimestamp)
	Registry.MustRegister(LastRunMode)
}

// SetRunMode resets the mode gauges and marks the active one
func SetRunMode(dryRun bool) {
	mode := ModeLive
	if dryRun {
		mode = ModeDryRun
	}
	LastRunMode.Reset()
	LastRunMode.WithLabelValues(mode).Set(1)
}

// RecordRun stores the duration and completion time of a run
func RecordRun(d time.Duration) {
	RunDuration.Observe(d.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordCleaned records one cleaned entry under target
func RecordCleaned(target string, bytes uint64) {
	EntriesCleanedTotal.Inc()
	BytesFreedTotal.Add(float64(bytes))
	EntryBytes.Observe(float64(bytes))
	TargetBytesFreedTotal.WithLabelValues(target).Add(float64(bytes))
}

// RecordSkipped records one skipped entry
func RecordSkipped(reason string) {
	EntriesSkippedTotal.WithLabelValues(reason).Inc()
}
