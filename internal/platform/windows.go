package platform

import (
	"path/filepath"
	"strings"
)

// Windows resolves its tables from the usual environment variables and
// falls back to the stock install locations.
type Windows struct {
	env EnvFunc
}

// NewWindows creates the Windows provider.
func NewWindows(env EnvFunc) *Windows {
	return &Windows{env: env}
}

func (w *Windows) Name() string { return "windows" }

func (w *Windows) CaseInsensitive() bool { return true }

// CandidateRoots returns %TEMP%, %TMP% and %LOCALAPPDATA%\Temp.
// %TEMP% usually points at %LOCALAPPDATA%\Temp; discovery dedupes.
func (w *Windows) CandidateRoots() []string {
	roots := []string{firstNonEmpty(w.env("TEMP"), `C:\Windows\Temp`)}
	if tmp := w.env("TMP"); tmp != "" {
		roots = append(roots, tmp)
	}
	if local := w.localAppData(); local != "" {
		roots = append(roots, filepath.Join(local, "Temp"))
	}
	return roots
}

func (w *Windows) localAppData() string {
	if l := w.env("LOCALAPPDATA"); l != "" {
		return l
	}
	return knownLocalAppData()
}

// ProtectedSubtrees returns the Windows directory and both Program Files.
func (w *Windows) ProtectedSubtrees() []string {
	return []string{
		firstNonEmpty(w.env("SystemRoot"), w.env("WINDIR"), `C:\Windows`),
		firstNonEmpty(w.env("ProgramFiles"), `C:\Program Files`),
		firstNonEmpty(w.env("ProgramFiles(x86)"), `C:\Program Files (x86)`),
	}
}

// Anchors returns the system drive root and the user profile.
func (w *Windows) Anchors() []string {
	drive := strings.TrimRight(firstNonEmpty(w.env("SystemDrive"), "C:"), `\`)
	anchors := []string{drive + `\`}
	if profile := w.env("USERPROFILE"); profile != "" {
		anchors = append(anchors, profile)
	}
	return anchors
}
