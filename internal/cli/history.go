package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/store"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show tracks played on this device",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "forget the play history")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if historyClear {
		if err := db.ClearHistory(ctx); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		if !jsonOut {
			fmt.Println("History cleared.")
		}
		return nil
	}

	entries, err := db.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if jsonOut {
		return printJSON(os.Stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Println("Nothing played yet")
		return nil
	}

	now := time.Now()
	table := NewTable("PLAYED", "TRACK", "ARTIST", "FROM")
	for _, e := range entries {
		from := string(e.Context.Type)
		if e.Context.Name != "" {
			from = e.Context.Name
		}
		table.Row(
			humanize.RelTime(e.PlayedAt, now, "ago", "from now"),
			TruncateString(e.Track.Title, 40),
			TruncateString(e.Track.ArtistName, 30),
			TruncateString(from, 30),
		)
	}
	table.Flush()
	return nil
}
