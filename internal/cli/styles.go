package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/modelarena/arena/internal/models"
)

// Adaptive colors for light and dark terminals.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

// Semantic styles for CLI output.
var (
	styleBrand   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
)

// Per-status badge styles for agent rows.
var (
	badgeRunning   = lipgloss.NewStyle().Foreground(colorCyan)
	badgeCompleted = lipgloss.NewStyle().Foreground(colorGreen)
	badgeCancelled = lipgloss.NewStyle().Foreground(colorYellow)
	badgeFailed    = lipgloss.NewStyle().Foreground(colorRed)
)

func badgeForStatus(s models.AgentStatus) lipgloss.Style {
	switch s {
	case models.AgentCompleted:
		return badgeCompleted
	case models.AgentCancelled:
		return badgeCancelled
	case models.AgentTerminated:
		return badgeFailed
	default:
		return badgeRunning
	}
}
