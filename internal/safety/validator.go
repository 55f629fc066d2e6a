package safety

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"disk-cleaner/internal/platform"
)

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrCanonicalize = errors.New("cannot canonicalize path")
)

// Verdict is the guard's decision for a single path
type Verdict int

const (
	// Allowed means the path resolved and is outside every protected location
	Allowed Verdict = iota
	// Protected means the path is protected or could not be resolved
	Protected
	// Missing means the path itself does not exist
	Missing
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Protected:
		return "protected"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Guard enforces the safety contract for all delete operations.
// Subtrees protect themselves and every descendant; anchors only
// protect the exact path.
type Guard struct {
	subtrees []string
	anchors  []string
	foldCase bool
}

// NewGuard canonicalizes the protected tables once. Entries that do not
// exist on this host keep their absolute, cleaned form.
func NewGuard(subtrees, anchors []string, foldCase bool) *Guard {
	return &Guard{
		subtrees: canonicalizeEntries(subtrees),
		anchors:  canonicalizeEntries(anchors),
		foldCase: foldCase,
	}
}

// FromProvider builds the guard for a platform, adding extra subtrees
func FromProvider(p platform.Provider, extra []string) *Guard {
	subtrees := append(append([]string{}, p.ProtectedSubtrees()...), extra...)
	return NewGuard(subtrees, p.Anchors(), p.CaseInsensitive())
}

// Subtrees returns the canonical protected subtrees
func (g *Guard) Subtrees() []string {
	return append([]string(nil), g.subtrees...)
}

// Anchors returns the canonical exact-match anchors
func (g *Guard) Anchors() []string {
	return append([]string(nil), g.anchors...)
}

// IsProtected reports whether path must not be touched. Any failure to
// resolve the path counts as protected.
func (g *Guard) IsProtected(path string) bool {
	return g.Evaluate(path) != Allowed
}

// Evaluate classifies path. Missing is only returned when resolution
// failed because the path itself is absent; a dangling symlink or an
// unreadable ancestor is Protected.
func (g *Guard) Evaluate(path string) Verdict {
	canon, err := Canonicalize(path)
	if err != nil {
		if errors.Is(err, ErrInvalidPath) {
			return Protected
		}
		if _, lerr := os.Lstat(path); absent(lerr) {
			return Missing
		}
		return Protected
	}
	if g.matches(canon) {
		return Protected
	}
	return Allowed
}

// absent reports whether err means the path does not exist, including a
// parent component that is not a directory
func absent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// ShieldsDescendant reports whether a protected entry lies strictly inside
// path, so removing path recursively would also remove it. Unresolvable
// paths report true.
func (g *Guard) ShieldsDescendant(path string) bool {
	canon, err := Canonicalize(path)
	if err != nil {
		return true
	}
	for _, list := range [][]string{g.subtrees, g.anchors} {
		for _, p := range list {
			if g.within(p, canon) {
				return true
			}
		}
	}
	return false
}

func (g *Guard) matches(canon string) bool {
	for _, a := range g.anchors {
		if g.samePath(canon, a) {
			return true
		}
	}
	for _, s := range g.subtrees {
		if g.samePath(canon, s) || g.within(canon, s) {
			return true
		}
	}
	return false
}

func (g *Guard) samePath(a, b string) bool {
	if g.foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func (g *Guard) within(path, root string) bool {
	if g.foldCase {
		path, root = strings.ToLower(path), strings.ToLower(root)
	}
	return IsWithin(path, root)
}

// Canonicalize converts path to an absolute, symlink-free, cleaned form
func Canonicalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCanonicalize, path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCanonicalize, path, err)
	}
	return filepath.Clean(resolved), nil
}

// IsWithin reports whether path is a strict descendant of root. Both
// arguments must already be clean absolute paths.
func IsWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return false
	}
	return !startsWithDotDot(rel)
}

func startsWithDotDot(rel string) bool {
	if rel == ".." {
		return true
	}
	return strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// canonicalizeEntries resolves table entries, keeping unresolvable ones
// in absolute form
func canonicalizeEntries(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if canon, err := Canonicalize(p); err == nil {
			out = append(out, canon)
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}
