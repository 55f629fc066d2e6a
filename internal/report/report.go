// Package report renders the outcome of a cleanup run for people and for
// scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"disk-cleaner/internal/cleanup"
	"disk-cleaner/internal/config"
	"disk-cleaner/internal/disk"
)

// Run outcomes
const (
	StatusCompleted   = "completed"
	StatusNoTargets   = "no_targets"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// Summary is the machine-readable result of one run
type Summary struct {
	Mode       string                 `json:"mode" yaml:"mode"`
	Status     string                 `json:"status" yaml:"status"`
	FreedBytes uint64                 `json:"freed_bytes" yaml:"freed_bytes"`
	Freed      string                 `json:"freed" yaml:"freed"`
	Processed  int                    `json:"processed" yaml:"processed"`
	Cleaned    int                    `json:"cleaned" yaml:"cleaned"`
	Skipped    int                    `json:"skipped" yaml:"skipped"`
	Targets    []cleanup.TargetReport `json:"targets" yaml:"targets"`
	LogFile    string                 `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	Duration   float64                `json:"duration_seconds" yaml:"duration_seconds"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is what the engine exposes after a run
type Result interface {
	DryRun() bool
	Stats() cleanup.Stats
	Targets() []cleanup.TargetReport
}

// New builds the summary of a finished or aborted run
func New(r Result, status string, startedAt time.Time, runErr error) Summary {
	stats := r.Stats()
	mode := "live"
	if r.DryRun() {
		mode = "dry-run"
	}
	s := Summary{
		Mode:       mode,
		Status:     status,
		FreedBytes: stats.FreedBytes,
		Freed:      disk.HumanReadable(stats.FreedBytes),
		Processed:  stats.Processed(),
		Cleaned:    stats.Cleaned,
		Skipped:    stats.Skipped,
		Targets:    r.Targets(),
		StartedAt:  startedAt,
		Duration:   time.Since(startedAt).Seconds(),
	}
	if s.Targets == nil {
		s.Targets = []cleanup.TargetReport{}
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// DryRun reports whether the summary describes a preview
func (s Summary) DryRun() bool {
	return s.Mode == "dry-run"
}

// Write renders s in the given output format
func Write(w io.Writer, s Summary, format string, color bool) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputText, "":
		_, err := io.WriteString(w, Text(s, NewTheme(w, color)))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Text renders the human summary
func Text(s Summary, th Theme) string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	freedLabel, cleanedLabel, skippedLabel := "Space freed", "Cleaned", "Skipped"
	if s.DryRun() {
		freedLabel, cleanedLabel, skippedLabel = "Space that would be freed", "Would be cleaned", "Would be skipped"
	}

	b.WriteString("\n" + th.rule(rule) + "\n")
	b.WriteString(th.title("CLEANUP RESULTS") + "\n")
	b.WriteString(th.rule(rule) + "\n")
	fmt.Fprintf(&b, "%s: %s\n", freedLabel, th.value(s.Freed))
	fmt.Fprintf(&b, "Files processed: %d\n", s.Processed)
	fmt.Fprintf(&b, "  %s: %d\n", cleanedLabel, s.Cleaned)
	fmt.Fprintf(&b, "  %s: %d\n", skippedLabel, s.Skipped)

	for _, t := range s.Targets {
		line := fmt.Sprintf("  %s  %s", t.Path, disk.HumanReadable(t.FreedBytes))
		if t.VolumeAfter != nil {
			line += fmt.Sprintf("  (%.1f%% free)", t.VolumeAfter.FreePercent())
		}
		b.WriteString(th.muted(line) + "\n")
	}
	if s.LogFile != "" {
		b.WriteString(th.muted("Log file: "+s.LogFile) + "\n")
	}
	b.WriteString("\n")

	switch s.Status {
	case StatusInterrupted:
		b.WriteString(th.warn("Cleanup interrupted by user") + "\n")
	case StatusNoTargets:
		b.WriteString(th.warn("No valid cleanup targets found") + "\n")
	case StatusFailed:
		b.WriteString(th.fail("Error during cleanup: "+s.Error) + "\n")
	default:
		if s.DryRun() {
			b.WriteString("This was a dry run. Use --force to actually clean files.\n")
		} else {
			b.WriteString(th.ok("Cleanup completed successfully!") + "\n")
		}
	}
	return b.String()
}

// Banner is printed before a run starts
func Banner(dryRun bool, grace time.Duration, th Theme) string {
	var b strings.Builder
	b.WriteString(th.title("DiskCleaner - Disk Cleanup Utility") + "\n")
	b.WriteString(th.rule(strings.Repeat("=", 50)) + "\n")
	if dryRun {
		b.WriteString(th.ok("DRY RUN MODE: No files will be deleted") + "\n")
		b.WriteString("Use --force to actually perform cleanup\n")
		return b.String()
	}
	b.WriteString(th.fail("LIVE MODE: Files will be permanently deleted") + "\n")
	if grace > 0 {
		fmt.Fprintf(&b, "Press Ctrl+C within %s to cancel...\n", grace)
	}
	return b.String()
}
