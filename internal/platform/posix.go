package platform

import "path/filepath"

// POSIX covers Linux, macOS and the BSDs.
type POSIX struct {
	env  EnvFunc
	home HomeFunc
}

// NewPOSIX creates the POSIX provider.
func NewPOSIX(env EnvFunc, home HomeFunc) *POSIX {
	return &POSIX{env: env, home: home}
}

func (p *POSIX) Name() string { return "posix" }

func (p *POSIX) CaseInsensitive() bool { return false }

// CandidateRoots returns $TMPDIR, /tmp, /var/tmp and the XDG cache directory.
func (p *POSIX) CandidateRoots() []string {
	roots := []string{
		firstNonEmpty(p.env("TMPDIR"), "/tmp"),
		"/tmp",
		"/var/tmp",
	}
	if cache := p.cacheDir(); cache != "" {
		roots = append(roots, cache)
	}
	return roots
}

func (p *POSIX) cacheDir() string {
	if xdg := p.env("XDG_CACHE_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return xdg
	}
	home := p.homeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".cache")
}

func (p *POSIX) homeDir() string {
	if h := p.env("HOME"); h != "" {
		return h
	}
	if p.home == nil {
		return ""
	}
	h, err := p.home()
	if err != nil {
		return ""
	}
	return h
}

// ProtectedSubtrees returns the standard binary, library, config and boot
// directories, plus the macOS system volume and state under /var.
func (p *POSIX) ProtectedSubtrees() []string {
	return []string{
		"/bin",
		"/sbin",
		"/usr",
		"/etc",
		"/lib",
		"/lib32",
		"/lib64",
		"/boot",
		"/System",
		"/var/lib",
		"/var/log",
		"/var/db",
	}
}

// Anchors returns "/", "/var" and the home directory.
func (p *POSIX) Anchors() []string {
	anchors := []string{"/", "/var"}
	if home := p.homeDir(); home != "" {
		anchors = append(anchors, home)
	}
	return anchors
}
