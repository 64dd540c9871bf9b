package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/tui/styles"
)

// History displays recently played tracks.
type History struct{}

// NewHistory creates a new History component.
func NewHistory() *History {
	return &History{}
}

// Render renders the history panel, with times relative to now.
func (h *History) Render(entries []core.HistoryEntry, now time.Time, width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(entries, now, width-4, height-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (h *History) renderHistory(entries []core.HistoryEntry, now time.Time, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// icon + " " + " — " + gap
	const overhead = 8

	for i, entry := range entries {
		if i >= maxLines {
			break
		}

		ago := humanize.RelTime(entry.PlayedAt, now, "ago", "from now")
		title, artist := fit(entry.Track.Title, entry.Track.ArtistName, width-overhead-len(ago), 8)
		info := fmt.Sprintf("%s — %s", title, artist)

		padding := width - 2 - lipgloss.Width(info) - len(ago)
		if padding < 1 {
			padding = 1
		}

		lines = append(lines, fmt.Sprintf("%s %s%s%s",
			styles.Dim.Render("✓"),
			info,
			lipgloss.NewStyle().Width(padding).Render(""),
			styles.Dim.Render(ago)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
