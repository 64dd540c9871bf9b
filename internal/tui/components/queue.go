package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/tui/styles"
)

// Queue displays the play queue with a selection cursor.
type Queue struct {
	offset   int
	selected int
}

// NewQueue creates a new Queue component.
func NewQueue() *Queue {
	return &Queue{}
}

// SelectNext moves the cursor down, stopping at the last of n entries.
func (q *Queue) SelectNext(n int) {
	if q.selected < n-1 {
		q.selected++
	}
}

// SelectPrev moves the cursor up.
func (q *Queue) SelectPrev() {
	if q.selected > 0 {
		q.selected--
	}
}

// Follow moves the cursor to the current track.
func (q *Queue) Follow(index int) {
	if index >= 0 {
		q.selected = index
	}
}

// Selected returns the selected index.
func (q *Queue) Selected() int {
	return q.selected
}

// Render renders the queue panel.
func (q *Queue) Render(sess *core.Session, width, height int, focused bool) string {
	title := styles.PanelTitle("Queue", focused)

	var content string
	if sess == nil || len(sess.Queue) == 0 {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(sess, width-4, height-4, focused)
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

func (q *Queue) renderQueue(sess *core.Session, width, maxLines int, focused bool) string {
	tracks := sess.Queue
	if q.selected >= len(tracks) {
		q.selected = len(tracks) - 1
	}

	visible := maxLines - 1
	if visible < 1 {
		visible = 1
	}

	// Keep the cursor on screen.
	if q.selected < q.offset {
		q.offset = q.selected
	}
	if q.selected >= q.offset+visible {
		q.offset = q.selected - visible + 1
	}

	start := q.offset
	end := start + visible
	if end > len(tracks) {
		end = len(tracks)
	}

	lines := make([]string, 0, end-start+1)

	// "XX. " + "▶ " + " — "
	const overhead = 9

	for i := start; i < end; i++ {
		track := tracks[i]
		num := fmt.Sprintf("%2d.", i+1)
		title, artist := fit(track.Title, track.ArtistName, width-overhead, 10)

		selector := " "
		if focused && i == q.selected {
			selector = "▸"
		}

		var line string
		if i == sess.QueueIndex {
			line = selector + styles.Playing.Render(fmt.Sprintf("%s ▶ %s — %s", num, title, artist))
		} else {
			line = fmt.Sprintf("%s%s   %s — %s",
				selector,
				styles.Dim.Render(num),
				title,
				styles.Muted.Render(artist))
		}
		lines = append(lines, line)
	}

	if end < len(tracks) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(tracks)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fit truncates title and artist to share available cells, giving the
// artist at least a third and no less than minArtist.
func fit(title, artist string, available, minArtist int) (string, string) {
	if len(title)+len(artist) <= available {
		return title, artist
	}

	artistSpace := available / 3
	if artistSpace < minArtist {
		artistSpace = minArtist
	}
	if artistSpace > available-minArtist {
		artistSpace = available - minArtist
	}
	if len(artist) < artistSpace {
		artistSpace = len(artist)
	}
	return truncate(title, available-artistSpace), truncate(artist, artistSpace)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
