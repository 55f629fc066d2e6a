// Package platform describes where transient data lives on the host and
// which locations are system-critical.
package platform

import (
	"os"
	"runtime"
)

// Provider supplies the platform-dependent tables used by a cleanup run.
type Provider interface {
	// Name identifies the variant ("posix", "windows").
	Name() string

	// CandidateRoots lists transient-storage directories in priority order.
	// Paths may be non-existent or duplicated; callers filter them.
	CandidateRoots() []string

	// ProtectedSubtrees lists directories that, together with every
	// descendant, must never be touched.
	ProtectedSubtrees() []string

	// Anchors lists paths that must never be removed themselves but may
	// contain cleanup targets (filesystem root, home directory).
	Anchors() []string

	// CaseInsensitive reports whether path comparison folds case.
	CaseInsensitive() bool
}

// EnvFunc looks up an environment variable. os.Getenv in production.
type EnvFunc func(string) string

// HomeFunc returns the current user's home directory.
type HomeFunc func() (string, error)

var variants = map[string]func(EnvFunc, HomeFunc) Provider{
	"windows": func(env EnvFunc, _ HomeFunc) Provider { return NewWindows(env) },
}

// Detect returns the provider for the running OS. Everything that is not
// explicitly registered is treated as POSIX.
func Detect() Provider {
	return ForOS(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

// ForOS selects a provider by GOOS value with the given environment.
func ForOS(goos string, env EnvFunc, home HomeFunc) Provider {
	if ctor, ok := variants[goos]; ok {
		return ctor(env, home)
	}
	return NewPOSIX(env, home)
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
