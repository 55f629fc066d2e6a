package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	defaultDirName       = "disk_cleanup_logs"
	filePrefix           = "disk_cleanup_"
	fileSuffix           = ".log"
	fileTimestamp        = "20060102_150405"
	consoleTimeFormat    = "2006-01-02 15:04:05"
	DefaultRetentionDays = 30
)

// Options controls where and how much a run logs
type Options struct {
	Dir           string    // Log directory; defaults to ~/disk_cleanup_logs
	Verbose       bool      // Emit DEBUG events
	RetentionDays int       // Older log files are pruned at start-up
	Console       io.Writer // Human-readable stream; defaults to stdout
	NoColor       bool
}

// Logger is the event sink for a run. Every event goes to the console in
// human form and to the run's log file as a JSON line.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
	path string
}

// DefaultDir returns ~/disk_cleanup_logs, or a relative directory when the
// home directory is unknown
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

// New creates the log directory, prunes expired logs and opens a fresh
// timestamped log file
func New(opts Options) (*Logger, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	retention := opts.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	now := time.Now()
	pruned := pruneOldLogs(dir, retention, now)

	path := filepath.Join(dir, filePrefix+now.Format(fileTimestamp)+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	cw := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: consoleTimeFormat,
		NoColor:    opts.NoColor || !IsTerminal(console),
	}

	l := &Logger{
		zl:   newZerolog(zerolog.MultiLevelWriter(cw, f), opts.Verbose),
		file: f,
		path: path,
	}
	l.Info("Log file", "path", path)
	for _, p := range pruned {
		l.Debug("Pruned expired log file", "path", p)
	}
	return l, nil
}

// NewWithWriter logs JSON lines to w only; no file is created
func NewWithWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{zl: newZerolog(w, verbose)}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newZerolog(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Path returns the log file of this run ("" without a file)
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zl.Debug().Fields(args).Msg(msg)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.zl.Info().Fields(args).Msg(msg)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zl.Warn().Fields(args).Msg(msg)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.zl.Error().Fields(args).Msg(msg)
}

// pruneOldLogs removes log files older than retentionDays and returns
// the removed paths
func pruneOldLogs(dir string, retentionDays int, now time.Time) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	var pruned []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			full := filepath.Join(dir, name)
			if err := os.Remove(full); err == nil {
				pruned = append(pruned, full)
			}
		}
	}
	return pruned
}
