package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/tui"
)

var playerCmd = &cobra.Command{
	Use:     "player",
	Aliases: []string{"ui", "tui"},
	Short:   "Launch the interactive player",
	Long: `Launch the interactive terminal player. It runs the full client on this
device: playback, cloud sync, heartbeat and device registry.

Panels:
  • Now Playing - current track, progress, volume, shuffle/repeat, prime
  • Queue - the play queue, current entry highlighted
  • Devices - devices in the session, prime marked with ★
  • History - recently played tracks

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  /            Play an album, playlist or song by id
  Space        Play/Pause
  n / p        Next / Previous
  ←/→          Seek 10s
  +/-          Volume up/down
  s / r        Shuffle / Repeat
  P            Make this device prime
  Tab          Switch panel`,
	Annotations: map[string]string{ownsTerminal: ""},
	RunE:        runPlayer,
}

func init() {
	rootCmd.AddCommand(playerCmd)
}

func runPlayer(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	wait := startEngine(ctx, e)
	err = tui.Run(tui.NewEngineController(e), cfg.TUI.RefreshInterval.Duration)
	cancel()
	wait()
	return err
}
