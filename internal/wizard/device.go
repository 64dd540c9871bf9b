package wizard

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/tui/styles"
)

// DeviceModel is the bubbletea model for the device picker.
type DeviceModel struct {
	devices  []core.Device
	primeID  string
	localID  string
	cursor   int
	selected *core.Device
	width    int
	height   int
}

var (
	deviceItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	deviceSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))
)

// NewDeviceModel creates a new device picker model. The cursor starts on the
// current prime device.
func NewDeviceModel(devices []core.Device, primeID, localID string) DeviceModel {
	m := DeviceModel{
		devices: devices,
		primeID: primeID,
		localID: localID,
		width:   80,
		height:  20,
	}
	for i, d := range devices {
		if d.ID == primeID {
			m.cursor = i
		}
	}
	return m
}

// Init initializes the model.
func (m DeviceModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m DeviceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "enter", " ":
			if len(m.devices) > 0 && m.cursor < len(m.devices) {
				m.selected = &m.devices[m.cursor]
				return m, tea.Quit
			}

		case "up", "k", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j", "ctrl+n":
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			if len(m.devices) > 0 {
				m.cursor = len(m.devices) - 1
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View renders the model.
func (m DeviceModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("★ Choose the prime device"))
	b.WriteString("\n\n")

	if len(m.devices) == 0 {
		b.WriteString(styles.Muted.Render("No devices found"))
		b.WriteString("\n\n")
		b.WriteString(styles.Dim.Render("Start tandem on another device and sign in to the same account."))
	} else {
		for i, d := range m.devices {
			var line strings.Builder
			if d.ID == m.primeID {
				line.WriteString(styles.Prime.Render("★ "))
			} else {
				line.WriteString(styles.Muted.Render("  "))
			}
			line.WriteString(styles.DeviceIcon(d.Class) + " " + d.Name)
			if d.ID == m.localID {
				line.WriteString(styles.Dim.Render(" (this device)"))
			}
			line.WriteString(" " + styles.Dim.Render(d.ID))

			if i == m.cursor {
				b.WriteString(deviceSelectedStyle.Render("▸ " + line.String()))
			} else {
				b.WriteString(deviceItemStyle.Render("  " + line.String()))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.Dim.Render("↑/↓ navigate • enter select • esc quit"))

	return b.String()
}

// Selected returns the selected device, or nil if none.
func (m DeviceModel) Selected() *core.Device {
	return m.selected
}

// RunDevicePicker runs the device picker and returns the selected device.
func RunDevicePicker(devices []core.Device, primeID, localID string) (*core.Device, error) {
	model := NewDeviceModel(devices, primeID, localID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(DeviceModel).Selected(), nil
}
