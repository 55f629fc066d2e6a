package disk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Logger receives diagnostics that never reach the caller as errors
type Logger interface {
	Debug(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// Accountant sums the bytes held by a directory tree.
//
// The figure is an approximation: subdirectories whose name starts with
// "." are not descended into, and symlinks are never followed, so the
// walk always terminates. Unreadable entries contribute zero.
type Accountant struct {
	fs     afero.Fs
	logger Logger
}

// NewAccountant creates an accountant over fs (the OS filesystem when nil)
func NewAccountant(fs afero.Fs, logger Logger) *Accountant {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Accountant{fs: fs, logger: logger}
}

// DirectorySize returns the total size of regular files under path.
// A directory that cannot be listed yields whatever was summed so far.
func (a *Accountant) DirectorySize(path string) uint64 {
	var total uint64
	a.walk(path, &total)
	return total
}

func (a *Accountant) walk(dir string, total *uint64) {
	f, err := a.fs.Open(dir)
	if err != nil {
		a.logger.Debug("cannot open directory", "path", dir, "error", err)
		return
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		// names may still hold a partial listing
		a.logger.Debug("cannot list directory", "path", dir, "error", err)
	}
	sort.Strings(names)

	for _, name := range names {
		child := filepath.Join(dir, name)
		info, err := a.lstat(child)
		if err != nil {
			a.logger.Debug("cannot stat entry", "path", child, "error", err)
			continue
		}

		mode := info.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			continue
		case mode.IsRegular():
			if info.Size() > 0 {
				*total += uint64(info.Size())
			}
		case mode.IsDir():
			if strings.HasPrefix(name, ".") {
				continue
			}
			a.walk(child, total)
		}
	}
}

func (a *Accountant) lstat(path string) (os.FileInfo, error) {
	if l, ok := a.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return a.fs.Stat(path)
}
