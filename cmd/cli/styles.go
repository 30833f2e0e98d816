package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Shared styles for the CLI package
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	closedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Strikethrough(true)

	amountStyle = lipgloss.NewStyle().
			Bold(true).
			Width(16).
			Align(lipgloss.Right)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280")).
			Width(20)
)
