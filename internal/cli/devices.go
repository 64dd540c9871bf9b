package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices in the session",
	Long:  `Lists every device signed in to the session. The prime device is marked with ★.`,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

type deviceRow struct {
	core.Device
	Prime bool `json:"prime"`
	Local bool `json:"local"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gw, err := newGateway()
	if err != nil {
		return err
	}

	devices, err := gw.FetchDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	var primeID string
	if state, err := gw.FetchCloudState(ctx); err != nil {
		logger.Debug().Err(err).Msg("failed to read prime device")
	} else if state != nil && state.PrimeDeviceID != nil {
		primeID = *state.PrimeDeviceID
	}

	rows := deviceRows(devices, primeID, localIDOrEmpty(ctx))
	if jsonOut {
		return printJSON(os.Stdout, rows)
	}
	if len(rows) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	renderDevices(os.Stdout, rows, time.Now())
	return nil
}

func localIDOrEmpty(ctx context.Context) string {
	id, err := localDeviceID(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to read local device id")
	}
	return id
}

// deviceRows marks the prime and local devices, most recently seen first.
func deviceRows(devices []core.Device, primeID, localID string) []deviceRow {
	rows := make([]deviceRow, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, deviceRow{Device: d, Prime: d.ID == primeID, Local: d.ID == localID})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastSeen.After(rows[j].LastSeen)
	})
	return rows
}

func renderDevices(out io.Writer, rows []deviceRow, now time.Time) {
	table := NewTableWriter(out, "", "NAME", "CLASS", "ID", "LAST SEEN")
	for _, r := range rows {
		mark := " "
		if r.Prime {
			mark = "★"
		}
		name := r.Name
		if r.Local {
			name += " (this device)"
		}
		seen := "-"
		if !r.LastSeen.IsZero() {
			seen = humanize.RelTime(r.LastSeen, now, "ago", "from now")
		}
		table.Row(mark, name, string(r.Class), r.ID, seen)
	}
	table.Flush()
}
