// Package wizard holds the small interactive prompts used by one-shot commands.
package wizard

import (
	"os"

	"golang.org/x/term"

	"github.com/tessro/tandem/internal/core"
)

// IsTerminal returns true if both stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// PromptDevice launches the device picker if interactive mode is available.
// Returns the selected device, or nil if cancelled or not interactive.
func PromptDevice(devices []core.Device, primeID, localID string) (*core.Device, error) {
	if !IsTerminal() || len(devices) == 0 {
		return nil, nil
	}
	return RunDevicePicker(devices, primeID, localID)
}

// OnlyOther returns the single device that is not the local one, if there is
// exactly one.
func OnlyOther(devices []core.Device, localID string) *core.Device {
	var other *core.Device
	count := 0
	for i := range devices {
		if devices[i].ID != localID {
			other = &devices[i]
			count++
		}
	}
	if count == 1 {
		return other
	}
	return nil
}
