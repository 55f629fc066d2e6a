package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// Registry holds every disk-cleaner metric. A dedicated registry keeps
	// Go runtime and process collectors out of the textfile.
	Registry = prometheus.NewRegistry()
)

// Init creates and registers all metrics.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initCleanupMetrics()
		initVolumeMetrics()

		registerCleanupMetrics()
		registerVolumeMetrics()

		// Present in the textfile even when a run finds no targets
		LastRunTimestamp.Set(0)
		TargetsDiscovered.Set(0)
	})
}

// WriteTextfile writes the current metric values in the Prometheus text
// format for the node_exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
