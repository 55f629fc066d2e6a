package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"disk-cleaner/internal/logging"
)

// Output formats for the run summary
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

const defaultGrace = 3 * time.Second

type Config struct {
	Force            bool          // Live mode; dry-run otherwise
	DryRun           bool          // Explicit dry-run request (the default)
	Verbose          bool          // DEBUG events
	LogDir           string        // Directory for timestamped run logs
	LogRetentionDays int           // Days to keep old run logs
	ExtraProtected   []string      // Additional protected subtrees
	HistoryPath      string        // SQLite removal history; empty disables
	MetricsFile      string        // Prometheus textfile; empty disables
	Output           string        // text, json or yaml
	Grace            time.Duration // Cancel window before a live run
	MaxCPUPercent    float64       // Pace the removal loop; 0 disables
	NoColor          bool
}

var (
	ErrConflictingModes = errors.New("--force and --dry-run are mutually exclusive")
	errUnknownOutput    = errors.New("output must be one of text, json, yaml")
	errRelativeProtect  = errors.New("protected path must be absolute")
	errNegativeDuration = errors.New("grace period cannot be negative")
	errNegativeRetain   = errors.New("log retention cannot be negative")
	errCPUPercent       = errors.New("max CPU percent must be between 0 and 100")
)

// Default returns the configuration used when no flags are given
func Default() *Config {
	return &Config{
		LogDir:           logging.DefaultDir(),
		LogRetentionDays: logging.DefaultRetentionDays,
		Output:           OutputText,
		Grace:            defaultGrace,
	}
}

// Live reports whether the run commits deletions
func (c *Config) Live() bool {
	return c.Force && !c.DryRun
}

// Validate checks flag combinations and fills in defaults
func (c *Config) Validate() error {
	if c.Force && c.DryRun {
		return ErrConflictingModes
	}

	if c.LogRetentionDays < 0 {
		return errNegativeRetain
	}
	if c.LogRetentionDays == 0 {
		c.LogRetentionDays = logging.DefaultRetentionDays
	}

	if c.Grace < 0 {
		return errNegativeDuration
	}

	if c.MaxCPUPercent < 0 || c.MaxCPUPercent > 100 {
		return fmt.Errorf("%w: %v", errCPUPercent, c.MaxCPUPercent)
	}

	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	switch c.Output {
	case "":
		c.Output = OutputText
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("%w: %q", errUnknownOutput, c.Output)
	}

	if c.LogDir == "" {
		c.LogDir = logging.DefaultDir()
	}

	cleaned := make([]string, 0, len(c.ExtraProtected))
	for _, p := range c.ExtraProtected {
		if strings.TrimSpace(p) == "" {
			continue
		}
		cp := filepath.Clean(p)
		if !filepath.IsAbs(cp) {
			return fmt.Errorf("%w: %s", errRelativeProtect, p)
		}
		cleaned = append(cleaned, cp)
	}
	c.ExtraProtected = cleaned

	return nil
}

// MachineOutput reports whether stdout carries a structured summary
func (c *Config) MachineOutput() bool {
	return c.Output == OutputJSON || c.Output == OutputYAML
}
