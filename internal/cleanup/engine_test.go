package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"disk-cleaner/internal/database"
	"disk-cleaner/internal/disk"
	"disk-cleaner/internal/fsops"
	"disk-cleaner/internal/safety"
)

type fakeHistory struct {
	records []database.RemovalRecord
	err     error
}

func (h *fakeHistory) RecordRemoval(rec database.RemovalRecord) error {
	h.records = append(h.records, rec)
	return h.err
}

type fakeMetrics struct {
	started  int
	finished int
	targets  int
	cleaned  uint64
	skipped  map[string]int
	volumes  int
}

func (m *fakeMetrics) RunStarted(_ bool, targets int) {
	m.started++
	m.targets = targets
}

func (m *fakeMetrics) RunFinished(time.Duration)           { m.finished++ }
func (m *fakeMetrics) TargetMeasured(string, uint64)       {}
func (m *fakeMetrics) VolumeSampled(string, disk.Usage)    { m.volumes++ }
func (m *fakeMetrics) EntryCleaned(_ string, bytes uint64) { m.cleaned += bytes }
func (m *fakeMetrics) EntrySkipped(reason string)          { m.skipped[reason]++ }

// TestProtectedScenario: a 100 byte file next to a protected directory
func TestProtectedScenario(t *testing.T) {
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "a.txt"), 100)
	sys := filepath.Join(target, "sys")
	writeFile(t, filepath.Join(sys, "keep.txt"), 5)

	engine, _ := newTestEngine(t, &fakeProvider{roots: []string{target}, subtrees: []string{sys}}, false)

	ok, err := engine.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = %v, %v", ok, err)
	}

	stats := engine.Stats()
	if stats.Cleaned != 1 || stats.Skipped != 1 || stats.FreedBytes != 100 {
		t.Errorf("Stats() = %+v, expected cleaned=1 skipped=1 freed=100", stats)
	}
	if stats.Processed() != 2 {
		t.Errorf("Processed() = %d, expected 2", stats.Processed())
	}
	if _, err := os.Stat(filepath.Join(target, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("a.txt should be gone, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(sys, "keep.txt")); err != nil {
		t.Errorf("protected file must remain: %v", err)
	}
}

// TestRemoveEntryMissing leaves every counter untouched
func TestRemoveEntryMissing(t *testing.T) {
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "plain.txt"), 4)
	history := &fakeHistory{}
	fakeDeleter := &fsops.FakeDeleter{}

	for _, dryRun := range []bool{true, false} {
		engine, sink := newTestEngine(t, &fakeProvider{roots: []string{target}}, dryRun)
		engine.SetDeleter(fakeDeleter)
		engine.SetHistory(history, 1)

		for _, path := range []string{
			filepath.Join(target, "does-not-exist"),
			filepath.Join(target, "plain.txt", "child"),
		} {
			outcome := engine.RemoveEntry(path)
			if outcome.Kind != SkippedMissing {
				t.Errorf("dryRun=%v: %s kind %s, expected skipped_missing", dryRun, path, outcome.Kind)
			}
		}
		if engine.Stats() != (Stats{}) {
			t.Errorf("dryRun=%v: counters changed: %+v", dryRun, engine.Stats())
		}
		if sink.count("warn", "") != 0 {
			t.Errorf("dryRun=%v: a missing entry must not warn", dryRun)
		}
	}
	if len(fakeDeleter.Calls) != 0 || len(history.records) != 0 {
		t.Errorf("missing entries must not reach the deleter or history: %v %v", fakeDeleter.Calls, history.records)
	}
}

// TestDeleterErrors verifies failure classification
func TestDeleterErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		kind        OutcomeKind
		skipped     int
		warnMessage string
	}{
		{
			name:        "permission denied",
			err:         &fs.PathError{Op: "remove", Err: fs.ErrPermission},
			kind:        SkippedPermission,
			skipped:     1,
			warnMessage: "Permission denied",
		},
		{
			name:        "busy",
			err:         errors.New("device or resource busy"),
			kind:        SkippedError,
			skipped:     1,
			warnMessage: "Failed to remove",
		},
		{
			name:    "vanished during delete",
			err:     fmt.Errorf("remove: %w", fs.ErrNotExist),
			kind:    SkippedMissing,
			skipped: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := t.TempDir()
			path := filepath.Join(target, "victim.txt")
			writeFile(t, path, 42)

			engine, sink := newTestEngine(t, &fakeProvider{roots: []string{target}}, false)
			engine.SetDeleter(&fsops.FakeDeleter{Errs: map[string]error{path: tt.err}})

			outcome := engine.RemoveEntry(path)
			if outcome.Kind != tt.kind {
				t.Errorf("kind = %s, expected %s", outcome.Kind, tt.kind)
			}
			stats := engine.Stats()
			if stats.Skipped != tt.skipped || stats.Cleaned != 0 || stats.FreedBytes != 0 {
				t.Errorf("Stats() = %+v", stats)
			}
			if tt.warnMessage != "" && sink.count("warn", tt.warnMessage) != 1 {
				t.Errorf("expected a %q warning", tt.warnMessage)
			}
			if tt.kind != SkippedMissing && !errors.Is(outcome.Err, tt.err) {
				t.Errorf("outcome error = %v, expected %v", outcome.Err, tt.err)
			}
		})
	}
}

// TestSymlinkEntries verifies links are unlinked, never followed
func TestSymlinkEntries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	target := t.TempDir()
	outside := t.TempDir()
	sys := filepath.Join(outside, "sys")
	writeFile(t, filepath.Join(sys, "keep.txt"), 10)
	writeFile(t, filepath.Join(outside, "data", "big.bin"), 4096)

	if err := os.Symlink(filepath.Join(outside, "data"), filepath.Join(target, "to_data")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := os.Symlink(sys, filepath.Join(target, "to_sys")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	engine, _ := newTestEngine(t, &fakeProvider{roots: []string{target}, subtrees: []string{sys}}, false)

	if out := engine.RemoveEntry(filepath.Join(target, "to_sys")); out.Kind != SkippedProtected {
		t.Errorf("link into protected tree: %s, expected skipped_protected", out.Kind)
	}

	out := engine.RemoveEntry(filepath.Join(target, "to_data"))
	if out.Kind != Removed || out.Bytes != 0 {
		t.Errorf("link to data: %+v, expected removed with 0 bytes", out)
	}
	if _, err := os.Lstat(filepath.Join(target, "to_data")); !os.IsNotExist(err) {
		t.Errorf("link should be gone, lstat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "data", "big.bin")); err != nil {
		t.Errorf("link target must survive: %v", err)
	}
}

// TestDirectoryShieldingProtectedPath refuses a recursive removal that
// would take a protected descendant with it
func TestDirectoryShieldingProtectedPath(t *testing.T) {
	target := t.TempDir()
	inner := filepath.Join(target, "project", "keep")
	writeFile(t, filepath.Join(inner, "data"), 10)

	fakeDeleter := &fsops.FakeDeleter{}
	engine, _ := newTestEngine(t, &fakeProvider{roots: []string{target}}, false)
	engine.SetDeleter(fakeDeleter)
	engine.SetGuard(safety.NewGuard([]string{inner}, nil, false))

	out := engine.RemoveEntry(filepath.Join(target, "project"))
	if out.Kind != SkippedProtected {
		t.Errorf("kind = %s, expected skipped_protected", out.Kind)
	}
	if len(fakeDeleter.Calls) != 0 {
		t.Errorf("unexpected delete calls %v", fakeDeleter.Calls)
	}
}

func TestDiscoverTargets(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	protected := t.TempDir()
	file := filepath.Join(t.TempDir(), "plain.txt")
	writeFile(t, file, 1)

	p := &fakeProvider{
		roots: []string{
			a,
			filepath.Join(a, "..", filepath.Base(a)),
			"",
			filepath.Join(b, "missing"),
			file,
			protected,
			b,
		},
		subtrees: []string{protected},
	}
	engine, sink := newTestEngine(t, p, true)

	targets := engine.DiscoverTargets()
	canonA, _ := safety.Canonicalize(a)
	canonB, _ := safety.Canonicalize(b)
	if len(targets) != 2 || targets[0] != canonA || targets[1] != canonB {
		t.Errorf("DiscoverTargets() = %v, expected [%s %s]", targets, canonA, canonB)
	}
	if sink.count("warn", "Skipping protected target") != 1 {
		t.Error("expected a warning for the protected candidate")
	}
}

func TestRunWithoutTargets(t *testing.T) {
	m := &fakeMetrics{skipped: map[string]int{}}
	engine, sink := newTestEngine(t, &fakeProvider{roots: []string{filepath.Join(t.TempDir(), "nope")}}, true)
	engine.SetMetrics(m)

	ok, err := engine.Run(context.Background())
	if ok || err != nil {
		t.Errorf("Run() = %v, %v; expected false, nil", ok, err)
	}
	if sink.count("warn", "No valid cleanup targets found") != 1 {
		t.Error("expected a warning when nothing can be cleaned")
	}
	if m.started != 1 || m.finished != 1 || m.targets != 0 {
		t.Errorf("metrics not recorded: %+v", m)
	}
}

func TestRunInterrupted(t *testing.T) {
	target, _ := sampleTree(t)
	engine, _ := newTestEngine(t, &fakeProvider{roots: []string{target}}, false)
	fakeDeleter := &fsops.FakeDeleter{}
	engine.SetDeleter(fakeDeleter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := engine.Run(ctx)
	if ok {
		t.Error("an interrupted run must not report success")
	}
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, expected ErrInterrupted wrapping context.Canceled", err)
	}
	if len(fakeDeleter.Calls) != 0 {
		t.Errorf("nothing should be deleted after cancellation: %v", fakeDeleter.Calls)
	}
}

func TestHistoryAndMetrics(t *testing.T) {
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "a.txt"), 100)
	sys := filepath.Join(target, "sys")
	writeFile(t, filepath.Join(sys, "keep.txt"), 5)

	history := &fakeHistory{err: errors.New("disk full")}
	m := &fakeMetrics{skipped: map[string]int{}}
	engine, sink := newTestEngine(t, &fakeProvider{roots: []string{target}, subtrees: []string{sys}}, true)
	engine.SetHistory(history, 7)
	engine.SetMetrics(m)
	engine.volume = func(string) (disk.Usage, error) {
		return disk.Usage{TotalBytes: 1000, FreeBytes: 400}, nil
	}

	if ok, err := engine.Run(context.Background()); !ok || err != nil {
		t.Fatalf("Run() = %v, %v", ok, err)
	}

	canon, _ := safety.Canonicalize(target)
	if len(history.records) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history.records))
	}
	first, second := history.records[0], history.records[1]
	if first.Action != database.ActionDryRun || first.Size != 100 || first.RunID != 7 || first.Target != canon {
		t.Errorf("unexpected first record %+v", first)
	}
	if second.Action != database.ActionSkip || second.Reason != "protected" {
		t.Errorf("unexpected second record %+v", second)
	}
	// History failures are logged, never fatal
	if sink.count("error", "Failed to record to database") != 2 {
		t.Error("expected history errors to be logged")
	}

	if m.cleaned != 100 || m.skipped["protected"] != 1 || m.volumes != 1 {
		t.Errorf("metrics = %+v", m)
	}

	reports := engine.Targets()
	if len(reports) != 1 {
		t.Fatalf("expected one target report, got %d", len(reports))
	}
	r := reports[0]
	if r.Path != canon || r.InitialBytes != 105 || r.FreedBytes != 100 || r.Cleaned != 1 || r.Skipped != 1 {
		t.Errorf("unexpected report %+v", r)
	}
	if r.VolumeBefore == nil || r.VolumeAfter == nil || r.VolumeAfter.FreeBytes != 400 {
		t.Errorf("volume figures missing: %+v", r)
	}
}

func TestOutcomeKindStrings(t *testing.T) {
	tests := []struct {
		kind   OutcomeKind
		str    string
		reason string
	}{
		{Removed, "removed", ""},
		{SkippedProtected, "skipped_protected", "protected"},
		{SkippedPermission, "skipped_permission", "permission"},
		{SkippedMissing, "skipped_missing", "missing"},
		{SkippedError, "skipped_error", "error"},
	}
	for _, tt := range tests {
		if tt.kind.String() != tt.str || tt.kind.Reason() != tt.reason {
			t.Errorf("%d: got %s/%s", tt.kind, tt.kind.String(), tt.kind.Reason())
		}
	}
}

type countingThrottle struct{ calls int }

func (c *countingThrottle) Throttle() { c.calls++ }

func TestThrottleCalledPerEntry(t *testing.T) {
	target, _ := sampleTree(t)
	engine, _ := newTestEngine(t, &fakeProvider{roots: []string{target}}, true)
	th := &countingThrottle{}
	engine.SetThrottle(th)

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if th.calls != 3 {
		t.Errorf("Throttle called %d times, expected once per entry (3)", th.calls)
	}
}
