package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"disk-cleaner/internal/database"
	"disk-cleaner/internal/exitcodes"
	"disk-cleaner/internal/platform"
	"disk-cleaner/internal/report"
)

type fakeProvider struct {
	roots []string
}

func (p fakeProvider) Name() string                { return "fake" }
func (p fakeProvider) CandidateRoots() []string    { return p.roots }
func (p fakeProvider) ProtectedSubtrees() []string { return nil }
func (p fakeProvider) Anchors() []string           { return nil }
func (p fakeProvider) CaseInsensitive() bool       { return false }

// useRoots points the command at the given cleanup targets for one test
func useRoots(t *testing.T, roots ...string) {
	t.Helper()
	prev := detectPlatform
	detectPlatform = func() platform.Provider { return fakeProvider{roots: roots} }
	t.Cleanup(func() { detectPlatform = prev })
}

// buildTree creates target/{a.txt, sub/b.txt, keep/c.txt}
func buildTree(t *testing.T) (target, keep string) {
	t.Helper()
	target = t.TempDir()
	keep = filepath.Join(target, "keep")
	files := map[string]int{
		filepath.Join(target, "a.txt"):        100,
		filepath.Join(target, "sub", "b.txt"): 50,
		filepath.Join(keep, "c.txt"):          7,
	}
	for path, size := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return target, keep
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestDryRunJSONSummary(t *testing.T) {
	target, keep := buildTree(t)
	useRoots(t, target)

	code, out, errOut := run(t, "-o", "json", "--no-color", "--log-dir", t.TempDir(), "--protect", keep)
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr:\n%s", code, errOut)
	}

	var summary report.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("stdout is not a JSON summary: %v\n%s", err, out)
	}
	if summary.Mode != "dry-run" || summary.Status != report.StatusCompleted {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.Cleaned != 2 || summary.Skipped != 1 || summary.FreedBytes != 150 {
		t.Errorf("totals = cleaned %d skipped %d freed %d, expected 2/1/150",
			summary.Cleaned, summary.Skipped, summary.FreedBytes)
	}
	if summary.LogFile == "" {
		t.Error("summary should name the log file")
	}
	if !strings.Contains(errOut, "DRY RUN MODE") {
		t.Errorf("banner should go to stderr with JSON output:\n%s", errOut)
	}

	if _, err := os.Stat(filepath.Join(target, "a.txt")); err != nil {
		t.Errorf("dry run removed a.txt: %v", err)
	}
}

func TestLiveRunRecordsHistoryAndMetrics(t *testing.T) {
	target, keep := buildTree(t)
	useRoots(t, target)

	state := t.TempDir()
	dbPath := filepath.Join(state, "history.db")
	promPath := filepath.Join(state, "metrics", "diskcleaner.prom")

	code, out, errOut := run(t, "--force", "--grace", "0", "--no-color",
		"--log-dir", state, "--protect", keep,
		"--history", dbPath, "--metrics-file", promPath)
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr:\n%s", code, errOut)
	}
	if !strings.Contains(out, "Cleanup completed successfully!") {
		t.Errorf("missing completion line:\n%s", out)
	}

	for _, gone := range []string{"a.txt", "sub"} {
		if _, err := os.Lstat(filepath.Join(target, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed, Lstat err = %v", gone, err)
		}
	}
	if _, err := os.Stat(filepath.Join(keep, "c.txt")); err != nil {
		t.Errorf("protected file removed: %v", err)
	}

	data, err := os.ReadFile(promPath)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), "diskcleaner_bytes_freed_total") {
		t.Errorf("metrics file lacks the freed-bytes counter:\n%s", data)
	}

	code, out, errOut = run(t, "history", "--db", dbPath, "--recent", "10", "--json")
	if code != exitcodes.Success {
		t.Fatalf("history exit code = %d, stderr:\n%s", code, errOut)
	}
	var records []database.RemovalRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	actions := map[string]int{}
	for _, r := range records {
		actions[r.Action]++
	}
	if len(records) != 3 || actions[database.ActionRemove] != 2 || actions[database.ActionSkip] != 1 {
		t.Errorf("unexpected history %v", actions)
	}

	code, out, _ = run(t, "history", "--db", dbPath, "--runs", "1", "--json")
	if code != exitcodes.Success {
		t.Fatalf("history --runs exit code = %d", code)
	}
	var runs []database.RunRecord
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("runs output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != database.RunCompleted || runs[0].Cleaned != 2 || runs[0].FreedBytes != 150 {
		t.Errorf("unexpected run rows %+v", runs)
	}
}

func TestRunFilesUnderTargetSurvive(t *testing.T) {
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "a.txt"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	useRoots(t, target)

	logDir := filepath.Join(target, "logs")
	dbPath := filepath.Join(target, "state", "history.db")
	promPath := filepath.Join(target, "metrics", "diskcleaner.prom")

	code, _, errOut := run(t, "--force", "--grace", "0", "--no-color", "-o", "json",
		"--log-dir", logDir, "--history", dbPath, "--metrics-file", promPath)
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr:\n%s", code, errOut)
	}

	if _, err := os.Lstat(filepath.Join(target, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("a.txt should have been removed, Lstat err = %v", err)
	}
	logs, err := filepath.Glob(filepath.Join(logDir, "disk_cleanup_*.log"))
	if err != nil || len(logs) != 1 {
		t.Errorf("log file of the run removed: %v %v", logs, err)
	}
	for _, p := range []string{dbPath, promPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s removed during the run: %v", p, err)
		}
	}

	code, out, _ := run(t, "history", "--db", dbPath, "--recent", "10", "--json")
	if code != exitcodes.Success {
		t.Fatalf("history exit code = %d", code)
	}
	var records []database.RemovalRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	actions := map[string]int{}
	for _, r := range records {
		actions[r.Action]++
	}
	if actions[database.ActionRemove] != 1 || actions[database.ActionSkip] != 2 {
		t.Errorf("unexpected history %v", actions)
	}
}

func TestHistoryMaintenance(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := database.NewRemovalDB(dbPath)
	if err != nil {
		t.Fatalf("NewRemovalDB: %v", err)
	}
	for _, age := range []time.Duration{100 * 24 * time.Hour, time.Hour} {
		err := db.RecordRemoval(database.RemovalRecord{
			Timestamp:  time.Now().Add(-age),
			Action:     database.ActionRemove,
			Path:       "/tmp/old.bin",
			ObjectType: "file",
			Size:       10,
		})
		if err != nil {
			t.Fatalf("RecordRemoval: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	code, out, errOut := run(t, "history", "--db", dbPath, "--prune", "30", "--vacuum", "--info", "--json")
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr:\n%s", code, errOut)
	}
	var result struct {
		Pruned   int64                  `json:"pruned"`
		Vacuumed bool                   `json:"vacuumed"`
		Info     map[string]interface{} `json:"info"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Pruned != 1 || !result.Vacuumed || result.Info["total_records"] != float64(1) {
		t.Errorf("unexpected maintenance result %+v", result)
	}

	code, out, _ = run(t, "history", "--db", dbPath, "--info")
	if code != exitcodes.Success || !strings.Contains(out, "Records:          1") {
		t.Errorf("info = %d:\n%s", code, out)
	}

	code, _, _ = run(t, "history", "--db", dbPath, "--prune", "-1")
	if code != exitcodes.InvalidUsage {
		t.Errorf("negative --prune exit code = %d, expected %d", code, exitcodes.InvalidUsage)
	}
}

func TestExitCodes(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	tests := []struct {
		name  string
		roots []string
		args  []string
		want  int
	}{
		{name: "force with dry-run", args: []string{"--force", "--dry-run"}, want: exitcodes.InvalidUsage},
		{name: "unknown output", args: []string{"-o", "xml"}, want: exitcodes.InvalidUsage},
		{name: "relative protect", args: []string{"--protect", "relative/dir"}, want: exitcodes.InvalidUsage},
		{name: "unknown flag", args: []string{"--bogus"}, want: exitcodes.InvalidUsage},
		{name: "positional argument", args: []string{"extra"}, want: exitcodes.InvalidUsage},
		{name: "no targets", roots: []string{missing}, want: exitcodes.Failure},
		{name: "history without query", args: []string{"history", "--db", filepath.Join(t.TempDir(), "h.db")}, want: exitcodes.InvalidUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useRoots(t, tt.roots...)
			args := append([]string{}, tt.args...)
			if len(args) == 0 || args[0] != "history" {
				args = append(args, "--log-dir", t.TempDir(), "--no-color")
			}
			code, out, errOut := run(t, args...)
			if code != tt.want {
				t.Errorf("exit code = %d, expected %d\nstdout:\n%s\nstderr:\n%s", code, tt.want, out, errOut)
			}
		})
	}
}

func TestNoTargetsSummary(t *testing.T) {
	useRoots(t, filepath.Join(t.TempDir(), "gone"))

	code, out, _ := run(t, "--log-dir", t.TempDir(), "--no-color")
	if code != exitcodes.Failure {
		t.Errorf("exit code = %d, expected %d", code, exitcodes.Failure)
	}
	if !strings.Contains(out, "No valid cleanup targets found") {
		t.Errorf("missing no-targets line:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := run(t, "version")
	if code != exitcodes.Success || !strings.HasPrefix(out, "disk-cleaner "+version) {
		t.Errorf("version = %d %q", code, out)
	}
}
