package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the shared session",
	Long:  `Shows what the session is playing, on which device and with which settings.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusBackend is the part of the gateway that status reads.
type statusBackend interface {
	FetchCloudState(ctx context.Context) (*core.CloudState, error)
	FetchTrack(ctx context.Context, trackID, artistID string) (*core.Track, error)
	FetchDevices(ctx context.Context) ([]core.Device, error)
}

type statusReport struct {
	State     core.CloudState `json:"state"`
	Track     *core.Track     `json:"track,omitempty"`
	PrimeName string          `json:"prime_name,omitempty"`
	Position  time.Duration   `json:"position"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}

	result, err := gatherStatus(cmd.Context(), gw, time.Now())
	if err != nil {
		return err
	}
	if result.HasErrors() && verbose {
		fmt.Fprintln(os.Stderr, result.ErrorSummary())
	}

	if jsonOut {
		return printJSON(os.Stdout, result.Data)
	}
	renderStatus(os.Stdout, result.Data)
	return nil
}

// gatherStatus reads the session. Only the session itself is required; the
// track and device lookups fill in what they can.
func gatherStatus(ctx context.Context, b statusBackend, now time.Time) (*tandemerrors.PartialResult[statusReport], error) {
	state, err := b.FetchCloudState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	result := &tandemerrors.PartialResult[statusReport]{}
	if state == nil {
		return result, nil
	}
	result.Data.State = *state
	result.Data.Position = livePosition(*state, now)

	if state.HasTrack() {
		track, err := b.FetchTrack(ctx, *state.TrackID, *state.TrackArtistID)
		if err != nil {
			result.AddError(fmt.Errorf("track: %w", err))
		} else {
			result.Data.Track = track
		}
	}

	if state.PrimeDeviceID != nil {
		devices, err := b.FetchDevices(ctx)
		if err != nil {
			result.AddError(fmt.Errorf("devices: %w", err))
		}
		for _, d := range devices {
			if d.ID == *state.PrimeDeviceID {
				result.Data.PrimeName = d.Name
			}
		}
	}
	return result, nil
}

// livePosition advances the stored position by the time since it was
// captured while the session is playing.
func livePosition(s core.CloudState, now time.Time) time.Duration {
	if s.PositionMs == nil {
		return 0
	}
	pos := time.Duration(*s.PositionMs) * time.Millisecond
	if s.IsPlaying != nil && *s.IsPlaying && s.PositionUpdatedAt != nil {
		if elapsed := now.Sub(time.UnixMilli(*s.PositionUpdatedAt)); elapsed > 0 {
			pos += elapsed
		}
	}
	return pos
}

func renderStatus(out io.Writer, r statusReport) {
	if r.Track == nil {
		if r.State.HasTrack() {
			fmt.Fprintf(out, "Track %s (details unavailable)\n", *r.State.TrackID)
		} else {
			fmt.Fprintln(out, "Nothing playing")
		}
	} else {
		icon := "⏸"
		if r.State.IsPlaying != nil && *r.State.IsPlaying {
			icon = "▶"
		}
		pos := r.Position
		if r.Track.Duration > 0 && pos > r.Track.Duration {
			pos = r.Track.Duration
		}
		fmt.Fprintf(out, "%s %s - %s\n", icon, r.Track.ArtistName, r.Track.Title)
		fmt.Fprintf(out, "  %s / %s\n", clock(pos), clock(r.Track.Duration))
	}

	var settings []string
	if r.State.Volume != nil {
		settings = append(settings, fmt.Sprintf("volume %d%%", *r.State.Volume))
	}
	if r.State.Shuffle != nil {
		settings = append(settings, "shuffle "+onOff(*r.State.Shuffle))
	}
	if r.State.RepeatMode != nil {
		settings = append(settings, "repeat "+strings.ToLower(string(*r.State.RepeatMode)))
	}
	if len(settings) > 0 {
		fmt.Fprintf(out, "  %s\n", strings.Join(settings, " · "))
	}

	if r.State.PrimeDeviceID != nil {
		name := r.PrimeName
		if name == "" {
			name = *r.State.PrimeDeviceID
		}
		fmt.Fprintf(out, "  ★ %s\n", name)
	}
}

func clock(d time.Duration) string {
	s := int(d.Seconds())
	if h := s / 3600; h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
