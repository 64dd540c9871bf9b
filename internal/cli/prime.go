package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
	"github.com/tessro/tandem/internal/wizard"
)

var primePick bool

var primeCmd = &cobra.Command{
	Use:   "prime [DEVICE_ID]",
	Short: "Choose the device that makes sound",
	Long: `Make a device prime. Only the prime device is audible; the others follow
silently. Without an argument, this device becomes prime.

Examples:
  tandem prime              # This device plays
  tandem prime PHONE1       # Hand off to another device
  tandem prime --pick       # Choose from a list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrime,
}

func init() {
	primeCmd.Flags().BoolVarP(&primePick, "pick", "p", false, "choose the device interactively")
	rootCmd.AddCommand(primeCmd)
}

func runPrime(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gw, err := newGateway()
	if err != nil {
		return err
	}
	localID, err := localDeviceID(ctx)
	if err != nil {
		return err
	}

	id := localID
	if len(args) == 1 || primePick {
		devices, err := gw.FetchDevices(ctx)
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
		if len(args) == 1 {
			id = args[0]
			if findDevice(devices, id) == nil {
				return fmt.Errorf("%w: %s", tandemerrors.ErrDeviceNotFound, id)
			}
		} else {
			var primeID string
			if state, err := gw.FetchCloudState(ctx); err == nil && state != nil && state.PrimeDeviceID != nil {
				primeID = *state.PrimeDeviceID
			}
			picked, err := wizard.PromptDevice(devices, primeID, localID)
			if err != nil {
				return err
			}
			if picked == nil {
				return nil
			}
			id = picked.ID
		}
	}

	if err := gw.ChangePrimeDevice(ctx, id); err != nil {
		return fmt.Errorf("failed to change prime device: %w", err)
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]string{"prime_device_id": id})
	}
	fmt.Printf("★ %s is now prime\n", id)
	return nil
}

func findDevice(devices []core.Device, id string) *core.Device {
	for i := range devices {
		if devices[i].ID == id {
			return &devices[i]
		}
	}
	return nil
}
