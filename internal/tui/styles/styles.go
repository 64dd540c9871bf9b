package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
)

// Colors
var (
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Accent    = lipgloss.Color("#F59E0B") // Amber

	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Info    = lipgloss.Color("#3B82F6")

	Border    = lipgloss.Color("#4B5563")
	Text      = lipgloss.Color("#F9FAFB")
	TextMuted = lipgloss.Color("#9CA3AF")
	TextDim   = lipgloss.Color("#6B7280")
)

// Text styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Text)

	Subtitle = lipgloss.NewStyle().
		Foreground(TextMuted)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Highlight = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Dim = lipgloss.NewStyle().
		Foreground(TextDim)

	Playing = lipgloss.NewStyle().
		Foreground(Secondary)

	Paused = lipgloss.NewStyle().
		Foreground(Warning)

	Prime = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	ErrorText = lipgloss.NewStyle().
		Foreground(Error)
)

// Border styles
var (
	BorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border)

	FocusedBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary)
)

// Panel returns the frame style for a panel.
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle renders a panel heading.
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// ProgressBar renders a bar width cells wide, percent full.
func ProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(Primary)
	emptyStyle := lipgloss.NewStyle().Foreground(Border)

	return filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("─", width-filled))
}

// StatusIcon returns an icon for the transport state.
func StatusIcon(state core.TransportState) string {
	switch state {
	case core.StatePlaying:
		return Playing.Render("▶")
	case core.StateCrossfading:
		return Playing.Render("⇄")
	case core.StateLoading:
		return Muted.Render("…")
	case core.StatePaused:
		return Paused.Render("⏸")
	default:
		return Dim.Render("■")
	}
}

// DeviceIcon returns an icon for a device class.
func DeviceIcon(class core.DeviceClass) string {
	if class == core.DeviceMobile {
		return "📱"
	}
	return "💻"
}

// RepeatIcon returns a short marker for a repeat mode.
func RepeatIcon(mode core.RepeatMode) string {
	switch mode {
	case core.RepeatAll:
		return Highlight.Render("🔁")
	case core.RepeatOne:
		return Highlight.Render("🔂")
	default:
		return Dim.Render("🔁")
	}
}

// ShuffleIcon returns a short marker for the shuffle flag.
func ShuffleIcon(on bool) string {
	if on {
		return Highlight.Render("🔀")
	}
	return Dim.Render("🔀")
}
