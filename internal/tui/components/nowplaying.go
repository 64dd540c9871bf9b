package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/tui/styles"
)

// NowPlaying displays the current track and transport state.
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component.
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel.
func (n *NowPlaying) Render(sess *core.Session, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !sess.HasTrack() {
		content = styles.Muted.Render("Nothing playing")
	} else {
		content = n.renderTrack(sess, width-4)
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

func (n *NowPlaying) renderTrack(sess *core.Session, width int) string {
	track := sess.Track

	icon := styles.StatusIcon(sess.State)
	title := styles.Title.Width(width - 4).Render(track.Title)
	artist := styles.Subtitle.Render(track.ArtistName)

	source := ""
	if sess.Context.Name != "" {
		source = styles.Dim.Render(fmt.Sprintf("%s · %s", contextLabel(sess.Context.Type), sess.Context.Name))
	}

	progressWidth := width - 14
	if progressWidth < 10 {
		progressWidth = 10
	}
	progress := fmt.Sprintf("%s %s %s",
		FormatDuration(sess.Position),
		styles.ProgressBar(sess.ProgressPercent(), progressWidth),
		FormatDuration(sess.Duration))

	next := ""
	if sess.Next != nil {
		next = styles.Dim.Render("Up next: " + sess.Next.Title)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+source,
		"",
		progress,
		"",
		n.renderStatus(sess),
		next,
	)
}

func (n *NowPlaying) renderStatus(sess *core.Session) string {
	volume := fmt.Sprintf("🔊 %d%%", sess.VolumePercent())
	if !sess.IsPrime {
		volume = styles.Dim.Render(fmt.Sprintf("🔇 %d%%", sess.VolumePercent()))
	}

	prime := styles.Dim.Render("listening")
	if sess.IsPrime {
		prime = styles.Prime.Render("★ prime")
	}

	return fmt.Sprintf("%s  %s %s  %s",
		volume,
		styles.ShuffleIcon(sess.Shuffle),
		styles.RepeatIcon(sess.Repeat),
		prime)
}

func contextLabel(t core.ContextType) string {
	switch t {
	case core.ContextAlbum:
		return "Album"
	case core.ContextArtist:
		return "Artist"
	case core.ContextPlaylist:
		return "Playlist"
	default:
		return "Song"
	}
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
