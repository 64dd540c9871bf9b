package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/tui/styles"
)

// Devices displays the device registry.
type Devices struct {
	selected int
}

// NewDevices creates a new Devices component.
func NewDevices() *Devices {
	return &Devices{}
}

// SelectNext selects the next device.
func (d *Devices) SelectNext() {
	d.selected++
}

// SelectPrev selects the previous device.
func (d *Devices) SelectPrev() {
	if d.selected > 0 {
		d.selected--
	}
}

// Selected returns the selected device index.
func (d *Devices) Selected() int {
	return d.selected
}

// Render renders the devices panel. primeID is marked with a star and
// localID is tagged as this device.
func (d *Devices) Render(devices []core.Device, primeID, localID string, width, height int, focused bool) string {
	title := styles.PanelTitle("Devices", focused)

	var content string
	if len(devices) == 0 {
		content = styles.Muted.Render("No devices seen")
	} else {
		content = d.renderDevices(devices, primeID, localID, height-4, focused)
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

func (d *Devices) renderDevices(devices []core.Device, primeID, localID string, maxLines int, focused bool) string {
	if d.selected >= len(devices) {
		d.selected = len(devices) - 1
	}
	if d.selected < 0 {
		d.selected = 0
	}

	lines := make([]string, 0, len(devices))
	for i, device := range devices {
		if len(lines) >= maxLines {
			break
		}

		selector := "  "
		if focused && i == d.selected {
			selector = "▸ "
		}

		name := device.Name
		if focused && i == d.selected {
			name = styles.Highlight.Render(name)
		}

		tags := ""
		if device.ID == localID {
			tags += styles.Dim.Render(" (this device)")
		}
		if device.ID == primeID {
			tags += styles.Prime.Render(" ★")
		}

		lines = append(lines, fmt.Sprintf("%s%s %s%s", selector, styles.DeviceIcon(device.Class), name, tags))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
