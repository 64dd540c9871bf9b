package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/engine"
	"github.com/tessro/tandem/internal/tail"
)

const tailHistory = 5

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
	tailInterval  time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the session in real-time",
	Long: `Join the session silently and print changes as they happen.

Events tracked:
  - Track changes, completions, skips and crossfades
  - Pause/Resume
  - Volume, shuffle and repeat changes
  - Prime device hand-offs
  - Devices joining the session`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")
	tailCmd.Flags().DurationVarP(&tailInterval, "interval", "i", time.Second, "sample interval")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	e, err := openEngine(ctx, engine.Headless())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	formatter := tail.NewFormatter(
		tail.WithEmoji(!tailNoEmoji),
		tail.WithTimestamp(tailTimestamp),
		tail.WithLocalDevice(e.Device.ID),
		tail.WithTemplate(tailFormat),
	)

	watcher := tail.NewWatcher(e.Scheduler, tailInterval)
	e.Registry.OnSeen(watcher.DeviceSeen)

	showRecent(ctx, e)

	wait := startEngine(ctx, e)
	defer wait()

	return follow(ctx, watcher, formatter)
}

// follow prints watcher events until ctx is done.
func follow(ctx context.Context, watcher *tail.Watcher, formatter *tail.Formatter) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Start(ctx)
	}()

	for {
		select {
		case event := <-watcher.Events():
			fmt.Println(formatter.Format(event))

		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// showRecent prints the last few played tracks, oldest first, so the newest
// sits just above the live events.
func showRecent(ctx context.Context, e *engine.Engine) {
	history, err := e.History(ctx, tailHistory)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to read history")
		return
	}
	for i := len(history) - 1; i >= 0; i-- {
		fmt.Println(formatHistoryLine(history[i], tailTimestamp, !tailNoEmoji))
	}
}

func formatHistoryLine(entry core.HistoryEntry, timestamp, emoji bool) string {
	line := fmt.Sprintf("%s - %s", entry.Track.ArtistName, entry.Track.Title)
	if emoji {
		line = "⏪ " + line
	}
	if timestamp {
		line = entry.PlayedAt.Local().Format("15:04:05") + " " + line
	}
	return line
}
