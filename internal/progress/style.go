package progress

import "github.com/charmbracelet/lipgloss"

var (
	Success = lipgloss.Color("#22C55E") // green-500
	Primary = lipgloss.Color("#7C3AED") // violet-600
	Muted   = lipgloss.Color("#6B7280") // gray-500
	Error   = lipgloss.Color("#EF4444") // red-500
)

var (
	StepDone    = lipgloss.NewStyle().Foreground(Success)
	StepActive  = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	StepPending = lipgloss.NewStyle().Foreground(Muted)
	StepFaint   = lipgloss.NewStyle().Foreground(Muted).Faint(true)

	Header = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true).
		MarginBottom(1)
	Failed = lipgloss.NewStyle().Foreground(Error).Bold(true)
)
