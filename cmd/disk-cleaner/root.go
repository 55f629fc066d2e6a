package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"disk-cleaner/internal/cleanup"
	"disk-cleaner/internal/config"
	"disk-cleaner/internal/database"
	"disk-cleaner/internal/exitcodes"
	"disk-cleaner/internal/limiter"
	"disk-cleaner/internal/logging"
	"disk-cleaner/internal/metrics"
	"disk-cleaner/internal/report"
	"disk-cleaner/internal/safety"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "disk-cleaner",
		Short: "Reclaim space from temporary directories without touching protected paths",
		Long: `disk-cleaner empties the well-known temporary directories of this
machine. Every candidate is checked against a fixed set of protected
locations before anything is removed.

Runs are previews unless --force is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.BoolVar(&cfg.Force, "force", false, "Actually delete files (default is a dry run)")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Preview the cleanup without deleting anything (default)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log DEBUG events")
	f.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for run logs")
	f.IntVar(&cfg.LogRetentionDays, "log-retention-days", cfg.LogRetentionDays, "Delete run logs older than this many days")
	f.StringArrayVar(&cfg.ExtraProtected, "protect", nil, "Additional protected directory (repeatable)")
	f.StringVar(&cfg.HistoryPath, "history", "", "Record removals in this SQLite database")
	f.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Summary format: text, json or yaml")
	f.DurationVar(&cfg.Grace, "grace", cfg.Grace, "Time to cancel a live run before it starts")
	f.Float64Var(&cfg.MaxCPUPercent, "max-cpu", 0, "Pace removals to roughly this CPU percentage (0 = unlimited)")
	f.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	cmd.MarkFlagsMutuallyExclusive("force", "dry-run")

	cmd.AddCommand(newHistoryCmd(stdout))
	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func runCleanup(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return exitWith(exitcodes.InvalidUsage, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Structured summaries own stdout
	console := stdout
	if cfg.MachineOutput() {
		console = stderr
	}

	logger, err := logging.New(logging.Options{
		Dir:           cfg.LogDir,
		Verbose:       cfg.Verbose,
		RetentionDays: cfg.LogRetentionDays,
		Console:       console,
		NoColor:       cfg.NoColor,
	})
	if err != nil {
		return exitWith(exitcodes.Failure, err)
	}
	defer logger.Close()

	dryRun := !cfg.Live()
	theme := report.NewTheme(console, !cfg.NoColor)
	fmt.Fprint(console, report.Banner(dryRun, cfg.Grace, theme))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !dryRun && cfg.Grace > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("Cleanup cancelled by user")
			fmt.Fprintln(console, "Cleanup cancelled by user")
			return exitWith(exitcodes.Interrupted, nil)
		case <-time.After(cfg.Grace):
		}
	}

	startedAt := time.Now()
	history, runID := openHistory(cfg.HistoryPath, dryRun, startedAt, logger)
	if history != nil {
		defer func() {
			if err := history.Close(); err != nil {
				logger.Error("Failed to close history database", "error", err)
			}
		}()
	}

	provider := detectPlatform()
	extra := append(append([]string{}, cfg.ExtraProtected...), runFiles(cfg, logger)...)
	guard := safety.FromProvider(provider, extra)
	logger.Debug("Platform detected",
		"platform", provider.Name(),
		"subtrees", guard.Subtrees(),
		"anchors", guard.Anchors(),
	)

	engine := cleanup.NewEngine(provider, logger, dryRun)
	engine.SetGuard(guard)
	if history != nil {
		engine.SetHistory(history, runID)
	}
	if l := limiter.NewCPULimiter(cfg.MaxCPUPercent); l.Enabled() {
		engine.SetThrottle(l)
	}

	ok, runErr := engine.Run(ctx)

	status := report.StatusCompleted
	code := exitcodes.Success
	switch {
	case errors.Is(runErr, cleanup.ErrInterrupted):
		status, code = report.StatusInterrupted, exitcodes.Interrupted
		logger.Warn("Cleanup interrupted by user")
	case runErr != nil:
		status, code = report.StatusFailed, exitcodes.Failure
		logger.Error("Error during cleanup", "error", runErr)
	case !ok:
		status, code = report.StatusNoTargets, exitcodes.Failure
	}

	if history != nil {
		finishHistory(history, runID, engine, status, logger)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("Failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		}
	}

	summary := report.New(engine, status, startedAt, runErr)
	summary.LogFile = logger.Path()
	if err := report.Write(stdout, summary, cfg.Output, !cfg.NoColor); err != nil {
		return exitWith(exitcodes.Failure, fmt.Errorf("write summary: %w", err))
	}

	if code != exitcodes.Success {
		return exitWith(code, nil)
	}
	return nil
}

// runFiles lists the files this run writes. They are protected so that a
// log directory, history or metrics file under a cleanup target survives.
func runFiles(cfg *config.Config, logger *logging.Logger) []string {
	var files []string
	if p := logger.Path(); p != "" {
		files = append(files, p)
	}
	if cfg.HistoryPath != "" {
		// SQLite keeps WAL and shared-memory files next to the database
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			files = append(files, absPath(cfg.HistoryPath+suffix))
		}
	}
	if cfg.MetricsFile != "" {
		files = append(files, absPath(cfg.MetricsFile))
	}
	return files
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// openHistory opens the history database and starts a run row. A history
// that cannot be opened is logged and the run continues without it.
func openHistory(path string, dryRun bool, startedAt time.Time, logger *logging.Logger) (*database.RemovalDB, int64) {
	if path == "" {
		return nil, 0
	}

	db, err := database.NewRemovalDB(path)
	if err != nil {
		logger.Error("Failed to open history database", "path", path, "error", err)
		return nil, 0
	}

	mode := metrics.ModeLive
	if dryRun {
		mode = metrics.ModeDryRun
	}
	runID, err := db.BeginRun(mode, startedAt)
	if err != nil {
		logger.Error("Failed to record run start", "error", err)
		return db, 0
	}
	logger.Debug("Recording history", "path", path, "run_id", runID)
	return db, runID
}

func finishHistory(db *database.RemovalDB, runID int64, engine *cleanup.Engine, status string, logger *logging.Logger) {
	if runID == 0 {
		return
	}
	stats := engine.Stats()
	err := db.FinishRun(database.RunRecord{
		ID:         runID,
		FinishedAt: time.Now(),
		Status:     status,
		Targets:    len(engine.Targets()),
		FreedBytes: int64(stats.FreedBytes),
		Cleaned:    stats.Cleaned,
		Skipped:    stats.Skipped,
	})
	if err != nil {
		logger.Error("Failed to record run result", "run_id", runID, "error", err)
	}
}
