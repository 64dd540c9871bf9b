package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Change the shared session from the command line",
	Long: `Write a change to the shared session. The prime device picks it up and
every other device follows, so this works without a player running here.

Examples:
  tandem remote pause
  tandem remote volume 40
  tandem remote shuffle on
  tandem remote repeat one
  tandem remote seek 1:30`,
}

func init() {
	remoteCmd.AddCommand(
		remoteAction("play", "Resume playback", cobra.NoArgs),
		remoteAction("pause", "Pause playback", cobra.NoArgs),
		remoteAction("volume PERCENT", "Set volume (0-100)", cobra.ExactArgs(1)),
		remoteAction("shuffle on|off", "Turn shuffle on or off", cobra.ExactArgs(1)),
		remoteAction("repeat none|all|one", "Set the repeat mode", cobra.ExactArgs(1)),
		remoteAction("seek POSITION", "Seek to a position (90, 1:30 or 1m30s)", cobra.ExactArgs(1)),
	)
	rootCmd.AddCommand(remoteCmd)
}

func remoteAction(use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := remoteMutation(cmd.Name(), args, time.Now())
			if err != nil {
				return err
			}

			gw, err := newGateway()
			if err != nil {
				return err
			}
			if err := gw.PublishSessionMutation(cmd.Context(), m); err != nil {
				return fmt.Errorf("failed to update session: %w", err)
			}
			if !jsonOut {
				fmt.Printf("✓ %s\n", describeMutation(m))
			}
			return nil
		},
	}
}

// remoteMutation turns a remote subcommand into the session fields it writes.
func remoteMutation(action string, args []string, now time.Time) (core.SessionMutation, error) {
	var m core.SessionMutation
	switch action {
	case "play", "pause":
		m.IsPlaying = core.Ptr(action == "play")

	case "volume":
		n, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
		if err != nil || n < 0 || n > 100 {
			return m, fmt.Errorf("%w: volume must be 0-100, got %q", tandemerrors.ErrInvalidConfig, args[0])
		}
		m.Volume = core.Ptr(n)

	case "shuffle":
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			m.Shuffle = core.Ptr(true)
		case "off", "false", "0":
			m.Shuffle = core.Ptr(false)
		default:
			return m, fmt.Errorf("%w: shuffle must be on or off, got %q", tandemerrors.ErrInvalidConfig, args[0])
		}

	case "repeat":
		mode, err := core.ParseRepeatMode(args[0])
		if err != nil {
			return m, fmt.Errorf("%w: %v", tandemerrors.ErrInvalidConfig, err)
		}
		m.RepeatMode = core.Ptr(mode)

	case "seek":
		d, err := parsePosition(args[0])
		if err != nil {
			return m, err
		}
		m = core.PositionMutation(d, now)

	default:
		return m, fmt.Errorf("unknown remote action %q", action)
	}
	return m, nil
}

// parsePosition accepts seconds ("90"), clock form ("1:30") or a Go
// duration ("1m30s").
func parsePosition(s string) (time.Duration, error) {
	bad := fmt.Errorf("%w: bad position %q", tandemerrors.ErrInvalidConfig, s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, bad
		}
		return time.Duration(n) * time.Second, nil
	}
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 || secs > 59 {
			return 0, bad
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, bad
	}
	return d, nil
}

func describeMutation(m core.SessionMutation) string {
	switch {
	case m.IsPlaying != nil && *m.IsPlaying:
		return "Playing"
	case m.IsPlaying != nil:
		return "Paused"
	case m.Volume != nil:
		return fmt.Sprintf("Volume %d%%", *m.Volume)
	case m.Shuffle != nil && *m.Shuffle:
		return "Shuffle on"
	case m.Shuffle != nil:
		return "Shuffle off"
	case m.RepeatMode != nil:
		return fmt.Sprintf("Repeat %s", strings.ToLower(string(*m.RepeatMode)))
	case m.PositionMs != nil:
		return fmt.Sprintf("Seeked to %s", time.Duration(*m.PositionMs)*time.Millisecond)
	case m.PrimeDeviceID != nil:
		return fmt.Sprintf("Prime is now %s", *m.PrimeDeviceID)
	}
	return "No change"
}
