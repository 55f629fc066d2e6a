package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"disk-cleaner/internal/disk"
)

// Volume metrics, sampled per cleanup target after it was processed
var (
	// TargetSizeBytes is the size of a target before processing
	TargetSizeBytes *prometheus.GaugeVec

	// VolumeFreeBytes tracks free space on the filesystem holding a target
	VolumeFreeBytes *prometheus.GaugeVec

	// VolumeTotalBytes tracks capacity of the filesystem holding a target
	VolumeTotalBytes *prometheus.GaugeVec

	// VolumeFreePercent tracks free space percentage per target
	VolumeFreePercent *prometheus.GaugeVec
)

func initVolumeMetrics() {
	TargetSizeBytes = NewGaugeVec(
		"diskcleaner_target_size_bytes",
		"Size of the cleanup target before processing.",
		[]string{"target"},
	)

	VolumeFreeBytes = NewGaugeVec(
		"diskcleaner_volume_free_bytes",
		"Free space on the filesystem containing the target.",
		[]string{"target"},
	)

	VolumeTotalBytes = NewGaugeVec(
		"diskcleaner_volume_total_bytes",
		"Total capacity of the filesystem containing the target.",
		[]string{"target"},
	)

	VolumeFreePercent = NewGaugeVec(
		"diskcleaner_volume_free_percent",
		"Free space percentage of the filesystem containing the target.",
		[]string{"target"},
	)
}

func registerVolumeMetrics() {
	Registry.MustRegister(TargetSizeBytes)
	Registry.MustRegister(VolumeFreeBytes)
	Registry.MustRegister(VolumeTotalBytes)
	Registry.MustRegister(VolumeFreePercent)
}

// RecordTargetSize sets the pre-processing size of target
func RecordTargetSize(target string, bytes uint64) {
	TargetSizeBytes.WithLabelValues(target).Set(float64(bytes))
}

// UpdateVolume stores the volume figures for target
func UpdateVolume(target string, u disk.Usage) {
	VolumeFreeBytes.WithLabelValues(target).Set(float64(u.FreeBytes))
	VolumeTotalBytes.WithLabelValues(target).Set(float64(u.TotalBytes))
	VolumeFreePercent.WithLabelValues(target).Set(u.FreePercent())
}
