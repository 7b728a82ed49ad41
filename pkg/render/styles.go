package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	GainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	LossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// Signed colours s by the sign of v: gains green, losses red.
func Signed(v float64, s string) string {
	switch {
	case v > 0:
		return GainStyle.Render(s)
	case v < 0:
		return LossStyle.Render(s)
	default:
		return s
	}
}

func actionStyle(a models.Action) lipgloss.Style {
	switch a {
	case models.ActionBuy:
		return GainStyle
	case models.ActionSell:
		return LossStyle
	case models.ActionHold:
		return WarningStyle
	default:
		return MutedStyle
	}
}

func heatStyle(l models.HeatLevel) lipgloss.Style {
	switch l {
	case models.HeatOverheated:
		return LossStyle
	case models.HeatWarm:
		return WarningStyle
	case models.HeatCool:
		return GainStyle
	default:
		return MutedStyle
	}
}

func signalStyle(s portfolio.Signal) lipgloss.Style {
	switch s {
	case portfolio.SmartMoney:
		return GainStyle
	case portfolio.DumbMoney:
		return LossStyle
	default:
		return MutedStyle
	}
}

func severityStyle(s portfolio.Severity) lipgloss.Style {
	switch s {
	case portfolio.SeverityHigh:
		return LossStyle
	case portfolio.SeverityMedium:
		return WarningStyle
	default:
		return GainStyle
	}
}
