package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"disk-cleaner/internal/database"
	"disk-cleaner/internal/disk"
	"disk-cleaner/internal/fsops"
	"disk-cleaner/internal/platform"
	"disk-cleaner/internal/safety"
)

// ErrInterrupted is returned by Run when its context is cancelled
var ErrInterrupted = errors.New("cleanup interrupted")

// EventSink receives the engine's events. Keys and values alternate in args.
type EventSink interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// History stores one record per attempted removal
type History interface {
	RecordRemoval(rec database.RemovalRecord) error
}

// Throttler is called after every entry; see limiter.CPULimiter
type Throttler interface {
	Throttle()
}

// Stats are the running totals of one engine
type Stats struct {
	FreedBytes uint64 `json:"freed_bytes" yaml:"freed_bytes"`
	Cleaned    int    `json:"cleaned" yaml:"cleaned"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
}

// Processed is the number of entries that were cleaned or skipped
func (s Stats) Processed() int {
	return s.Cleaned + s.Skipped
}

// TargetReport describes what happened under one cleanup target
type TargetReport struct {
	Path         string      `json:"path" yaml:"path"`
	InitialBytes uint64      `json:"initial_bytes" yaml:"initial_bytes"`
	FreedBytes   uint64      `json:"freed_bytes" yaml:"freed_bytes"`
	Cleaned      int         `json:"cleaned" yaml:"cleaned"`
	Skipped      int         `json:"skipped" yaml:"skipped"`
	VolumeBefore *disk.Usage `json:"volume_before,omitempty" yaml:"volume_before,omitempty"`
	VolumeAfter  *disk.Usage `json:"volume_after,omitempty" yaml:"volume_after,omitempty"`
	Error        string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Engine removes the contents of transient-data directories, never touching
// protected paths. The mode is fixed at construction. An Engine is meant
// for a single run and is not safe for concurrent use.
type Engine struct {
	provider   platform.Provider
	guard      *safety.Guard
	accountant *disk.Accountant
	deleter    fsops.Deleter
	sink       EventSink
	metrics    Metrics
	history    History
	runID      int64
	volume     func(string) (disk.Usage, error)
	throttle   Throttler
	dryRun     bool

	stats   Stats
	reports []TargetReport
	target  string
}

// NewEngine creates an engine for the given platform. A nil sink discards
// events.
func NewEngine(provider platform.Provider, sink EventSink, dryRun bool) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	return &Engine{
		provider:   provider,
		guard:      safety.FromProvider(provider, nil),
		accountant: disk.NewAccountant(nil, sink),
		deleter:    fsops.NewOSDeleter(),
		sink:       sink,
		metrics:    NewPrometheusMetrics(),
		volume:     disk.VolumeUsage,
		dryRun:     dryRun,
	}
}

// SetDeleter sets the deleter (used for testing)
func (e *Engine) SetDeleter(d fsops.Deleter) {
	e.deleter = d
}

// SetGuard replaces the guard built from the provider's tables
func (e *Engine) SetGuard(g *safety.Guard) {
	e.guard = g
}

// SetAccountant sets the size accountant
func (e *Engine) SetAccountant(a *disk.Accountant) {
	e.accountant = a
}

// SetHistory enables the removal history; records are tagged with runID
func (e *Engine) SetHistory(h History, runID int64) {
	e.history = h
	e.runID = runID
}

// SetThrottle paces the removal loop; nil disables pacing
func (e *Engine) SetThrottle(t Throttler) {
	e.throttle = t
}

// SetMetrics sets the metrics recorder
func (e *Engine) SetMetrics(m Metrics) {
	e.metrics = m
}

// DryRun reports whether the engine only previews deletions
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// Stats returns the totals accumulated so far
func (e *Engine) Stats() Stats {
	return e.stats
}

// Targets returns the per-target reports of the last Run
func (e *Engine) Targets() []TargetReport {
	return append([]TargetReport(nil), e.reports...)
}

// DiscoverTargets returns the provider's candidate roots that exist, are
// directories and are not protected. Duplicates are dropped after
// canonicalization; order follows the provider.
func (e *Engine) DiscoverTargets() []string {
	seen := make(map[string]bool)
	var targets []string

	for _, root := range e.provider.CandidateRoots() {
		if strings.TrimSpace(root) == "" {
			continue
		}
		canon, err := safety.Canonicalize(root)
		if err != nil {
			e.sink.Debug("Candidate root unavailable", "path", root, "error", err)
			continue
		}

		key := canon
		if e.provider.CaseInsensitive() {
			key = strings.ToLower(canon)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		info, err := os.Stat(canon)
		if err != nil || !info.IsDir() {
			e.sink.Debug("Candidate root is not a directory", "path", canon)
			continue
		}
		if e.guard.IsProtected(canon) {
			e.sink.Warn("Skipping protected target", "path", canon)
			continue
		}
		targets = append(targets, canon)
	}
	return targets
}

// Run discovers the targets and processes the immediate children of each.
// It returns false without error when there is nothing to clean, and
// ErrInterrupted when ctx is cancelled between entries. Stats stay valid
// for partial reporting in both cases.
func (e *Engine) Run(ctx context.Context) (bool, error) {
	start := time.Now()
	e.reports = nil

	targets := e.DiscoverTargets()
	e.metrics.RunStarted(e.dryRun, len(targets))
	defer func() { e.metrics.RunFinished(time.Since(start)) }()

	if len(targets) == 0 {
		e.sink.Warn("No valid cleanup targets found")
		return false, nil
	}

	e.sink.Info("Starting cleanup", "targets", len(targets), "dry_run", e.dryRun)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		if err := e.processTarget(ctx, target); err != nil {
			return false, err
		}
	}

	e.sink.Info("Cleanup complete",
		"freed_bytes", e.stats.FreedBytes,
		"cleaned", e.stats.Cleaned,
		"skipped", e.stats.Skipped,
	)
	return true, nil
}

func (e *Engine) processTarget(ctx context.Context, target string) error {
	e.target = target
	defer func() { e.target = "" }()

	report := TargetReport{Path: target}
	before := e.stats
	defer func() {
		report.FreedBytes = e.stats.FreedBytes - before.FreedBytes
		report.Cleaned = e.stats.Cleaned - before.Cleaned
		report.Skipped = e.stats.Skipped - before.Skipped
		report.VolumeAfter = e.volumeUsage(target)
		if report.VolumeAfter != nil {
			e.metrics.VolumeSampled(target, *report.VolumeAfter)
		}
		e.reports = append(e.reports, report)
	}()

	report.InitialBytes = e.accountant.DirectorySize(target)
	report.VolumeBefore = e.volumeUsage(target)
	e.metrics.TargetMeasured(target, report.InitialBytes)
	if report.InitialBytes > 0 {
		e.sink.Info("Processing target",
			"path", target,
			"size", report.InitialBytes,
			"human", disk.HumanReadable(report.InitialBytes),
		)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		e.sink.Warn("Cannot list target", "path", target, "error", err)
		report.Error = err.Error()
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		e.RemoveEntry(filepath.Join(target, entry.Name()))
		if e.throttle != nil {
			e.throttle.Throttle()
		}
	}
	return nil
}

// RemoveEntry removes a single entry, or previews it in dry-run mode.
// Protected entries are refused before anything else happens; entries
// that vanished are skipped silently. Failures are reported as outcomes,
// never returned.
func (e *Engine) RemoveEntry(path string) Outcome {
	switch e.guard.Evaluate(path) {
	case safety.Missing:
		return Outcome{Kind: SkippedMissing}
	case safety.Protected:
		e.sink.Warn("Skipping protected path", "path", path)
		return e.skip(path, "", SkippedProtected, nil)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return e.failed(path, "", err)
	}

	var (
		kind string
		size uint64
	)
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		kind = "symlink"
	case mode.IsDir():
		kind = "directory"
		if e.guard.ShieldsDescendant(path) {
			e.sink.Warn("Skipping directory containing protected path", "path", path)
			return e.skip(path, kind, SkippedProtected, nil)
		}
		size = e.accountant.DirectorySize(path)
	case mode.IsRegular():
		kind = "file"
		size = uint64(info.Size())
	default:
		kind = "special"
		size = uint64(info.Size())
	}

	if e.dryRun {
		e.sink.Info("[DRY-RUN] Would remove "+kind,
			"path", path, "size", size, "human", disk.HumanReadable(size))
	} else {
		if kind == "directory" {
			err = e.deleter.RemoveAll(path)
		} else {
			// Symlinks are unlinked; their target is never touched
			err = e.deleter.Remove(path)
		}
		if err != nil {
			return e.failed(path, kind, err)
		}
		e.sink.Info("Removed "+kind,
			"path", path, "size", size, "human", disk.HumanReadable(size))
	}

	e.stats.FreedBytes += size
	e.stats.Cleaned++
	e.metrics.EntryCleaned(e.target, size)

	action := database.ActionRemove
	if e.dryRun {
		action = database.ActionDryRun
	}
	e.record(database.RemovalRecord{
		Action:     action,
		Path:       path,
		ObjectType: kind,
		Size:       int64(size),
	})

	return Outcome{Kind: Removed, Bytes: size}
}

// failed classifies err. Not-exist is a race with another process and is
// not counted.
func (e *Engine) failed(path, kind string, err error) Outcome {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Outcome{Kind: SkippedMissing}
	case errors.Is(err, fs.ErrPermission):
		e.sink.Warn("Permission denied", "path", path, "error", err)
		return e.skip(path, kind, SkippedPermission, err)
	default:
		e.sink.Warn("Failed to remove", "path", path, "error", err)
		return e.skip(path, kind, SkippedError, err)
	}
}

func (e *Engine) skip(path, kind string, k OutcomeKind, err error) Outcome {
	e.stats.Skipped++
	e.metrics.EntrySkipped(k.Reason())

	if kind == "" {
		kind = "unknown"
	}
	rec := database.RemovalRecord{
		Action:     database.ActionSkip,
		Path:       path,
		ObjectType: kind,
		Reason:     k.Reason(),
	}
	if k == SkippedError {
		rec.Action = database.ActionError
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	e.record(rec)

	return Outcome{Kind: k, Err: err}
}

func (e *Engine) record(rec database.RemovalRecord) {
	if e.history == nil {
		return
	}
	rec.RunID = e.runID
	rec.Target = e.target
	if err := e.history.RecordRemoval(rec); err != nil {
		// A history failure never fails the cleanup
		e.sink.Error("Failed to record to database", "path", rec.Path, "error", err)
	}
}

func (e *Engine) volumeUsage(path string) *disk.Usage {
	if e.volume == nil {
		return nil
	}
	u, err := e.volume(path)
	if err != nil {
		e.sink.Debug("Cannot read volume usage", "path", path, "error", err)
		return nil
	}
	return &u
}

type nopSink struct{}

func (nopSink) Debug(string, ...interface{}) {}
func (nopSink) Info(string, ...interface{})  {}
func (nopSink) Warn(string, ...interface{})  {}
func (nopSink) Error(string, ...interface{}) {}
