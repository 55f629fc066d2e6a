package cleanup

import (
	"time"

	"disk-cleaner/internal/disk"
	"disk-cleaner/internal/metrics"
)

// Metrics interface for cleanup metrics
type Metrics interface {
	RunStarted(dryRun bool, targets int)
	RunFinished(d time.Duration)
	TargetMeasured(target string, bytes uint64)
	VolumeSampled(target string, u disk.Usage)
	EntryCleaned(target string, bytes uint64)
	EntrySkipped(reason string)
}

// promMetrics records into the global Prometheus registry
type promMetrics struct{}

// NewPrometheusMetrics initializes the global metrics and returns a
// recorder backed by them
func NewPrometheusMetrics() Metrics {
	metrics.Init()
	return promMetrics{}
}

func (promMetrics) RunStarted(dryRun bool, targets int) {
	metrics.SetRunMode(dryRun)
	metrics.TargetsDiscovered.Set(float64(targets))
}

func (promMetrics) RunFinished(d time.Duration) {
	metrics.RecordRun(d)
}

func (promMetrics) TargetMeasured(target string, bytes uint64) {
	metrics.RecordTargetSize(target, bytes)
}

func (promMetrics) VolumeSampled(target string, u disk.Usage) {
	metrics.UpdateVolume(target, u)
}

func (promMetrics) EntryCleaned(target string, bytes uint64) {
	metrics.RecordCleaned(target, bytes)
}

func (promMetrics) EntrySkipped(reason string) {
	metrics.RecordSkipped(reason)
}
