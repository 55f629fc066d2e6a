package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"disk-cleaner/internal/logging"
)

// Theme styles the text summary. The zero value renders plain text.
type Theme struct {
	enabled bool

	titleStyle lipgloss.Style
	ruleStyle  lipgloss.Style
	valueStyle lipgloss.Style
	mutedStyle lipgloss.Style
	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	failStyle  lipgloss.Style
}

var (
	clrGreen  = lipgloss.AdaptiveColor{Light: "#16a34a", Dark: "#4ade80"}
	clrYellow = lipgloss.AdaptiveColor{Light: "#ca8a04", Dark: "#facc15"}
	clrRed    = lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#f87171"}
	clrCyan   = lipgloss.AdaptiveColor{Light: "#0891b2", Dark: "#22d3ee"}
	clrMuted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
)

// NewTheme returns a colored theme when color is requested and w is a
// terminal, and a plain one otherwise
func NewTheme(w io.Writer, color bool) Theme {
	if !color || !logging.IsTerminal(w) {
		return Theme{}
	}
	r := lipgloss.NewRenderer(w)
	return Theme{
		enabled:    true,
		titleStyle: r.NewStyle().Bold(true).Foreground(clrCyan),
		ruleStyle:  r.NewStyle().Foreground(clrMuted),
		valueStyle: r.NewStyle().Bold(true).Foreground(clrGreen),
		mutedStyle: r.NewStyle().Foreground(clrMuted).Faint(true),
		okStyle:    r.NewStyle().Foreground(clrGreen),
		warnStyle:  r.NewStyle().Bold(true).Foreground(clrYellow),
		failStyle:  r.NewStyle().Bold(true).Foreground(clrRed),
	}
}

func (t Theme) render(st lipgloss.Style, s string) string {
	if !t.enabled {
		return s
	}
	return st.Render(s)
}

func (t Theme) title(s string) string { return t.render(t.titleStyle, s) }
func (t Theme) rule(s string) string  { return t.render(t.ruleStyle, s) }
func (t Theme) value(s string) string { return t.render(t.valueStyle, s) }
func (t Theme) muted(s string) string { return t.render(t.mutedStyle, s) }
func (t Theme) ok(s string) string    { return t.render(t.okStyle, s) }
func (t Theme) warn(s string) string  { return t.render(t.warnStyle, s) }
func (t Theme) fail(s string) string  { return t.render(t.failStyle, s) }
