package output

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by text output.
type Styles struct {
	Header   lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	NodeName lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Underline(true),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("245")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("42")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("214")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Info:     r.NewStyle().Foreground(lipgloss.Color("75")),
		NodeName: r.NewStyle().Foreground(lipgloss.Color("81")),
	}
}
