package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/engine"
	"github.com/tessro/tandem/internal/tui/components"
	"github.com/tessro/tandem/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelDevices
	PanelHistory
)

const (
	volumeStep    = 5
	seekStep      = 10 * time.Second
	historyLimit  = 20
	errorTTL      = 5 * time.Second
	actionTimeout = 15 * time.Second
)

// Model is the main TUI model
type Model struct {
	ctrl        Controller
	refreshRate time.Duration

	width        int
	height       int
	focusedPanel Panel

	// State
	session core.Session
	devices []core.Device
	history []core.HistoryEntry
	trackID string
	now     time.Time

	// Components
	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	devicesView *components.Devices
	historyView *components.History

	// Overlays
	showHelp    bool
	showPrompt  bool
	promptInput textinput.Model
	promptErr   error

	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates a model that polls ctrl every refreshRate.
func NewModel(ctrl Controller, refreshRate time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "album:ID[:ARTIST]  artist:ID  playlist:ID  song:ID:ARTIST  (@N to start at N)"
	ti.CharLimit = 200
	ti.Width = 56

	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}

	return Model{
		ctrl:        ctrl,
		refreshRate: refreshRate,
		nowPlaying:  components.NewNowPlaying(),
		queueView:   components.NewQueue(),
		devicesView: components.NewDevices(),
		historyView: components.NewHistory(),
		promptInput: ti,
	}
}

// Messages
type tickMsg time.Time
type historyMsg []core.HistoryEntry
type errMsg struct{ err error }
type actionDoneMsg struct{}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchHistory() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		history, err := ctrl.History(ctx, historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(history)
	}
}

// do runs fn off the update loop and reports its outcome.
func (m Model) do(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.fetchHistory(),
	)
}

// refresh reads the local session and device registry.
func (m *Model) refresh(now time.Time) tea.Cmd {
	m.now = now
	m.session = m.ctrl.Snapshot()
	m.devices = m.ctrl.Devices()
	if now.After(m.errorExpiry) {
		m.lastError = nil
	}

	id := ""
	if m.session.Track != nil {
		id = m.session.Track.ID
	}
	if id == m.trackID {
		return nil
	}
	m.trackID = id
	m.queueView.Follow(m.session.QueueIndex)
	return m.fetchHistory()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		cmd := m.refresh(time.Time(msg))
		return m, tea.Batch(m.tick(), cmd)

	case actionDoneMsg:
		return m, m.refresh(time.Now())

	case historyMsg:
		m.history = msg
		return m, nil

	case errMsg:
		m.lastError = msg.err
		m.errorExpiry = time.Now().Add(errorTTL)
		return m, nil
	}

	if m.showPrompt {
		var cmd tea.Cmd
		m.promptInput, cmd = m.promptInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showPrompt {
		return m.handlePromptKeyPress(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.showPrompt = true
		m.promptErr = nil
		m.promptInput.SetValue("")
		m.promptInput.Focus()
		return m, textinput.Blink

	case "tab":
		m.focusedPanel = (m.focusedPanel + 1) % 4
		return m, nil

	case "shift+tab":
		m.focusedPanel = (m.focusedPanel + 3) % 4
		return m, nil
	}

	// Playback controls
	ctrl := m.ctrl
	switch msg.String() {
	case " ":
		return m, m.do(ctrl.TogglePlay)
	case "n":
		return m, m.do(ctrl.Next)
	case "p":
		return m, m.do(ctrl.Previous)
	case "+", "=":
		return m, m.setVolume(m.session.VolumePercent() + volumeStep)
	case "-":
		return m, m.setVolume(m.session.VolumePercent() - volumeStep)
	case "right", "l":
		return m, m.seek(seekStep)
	case "left", "h":
		return m, m.seek(-seekStep)
	case "s":
		return m, m.do(func(context.Context) error {
			ctrl.ToggleShuffle()
			return nil
		})
	case "r":
		return m, m.do(func(context.Context) error {
			ctrl.CycleRepeat()
			return nil
		})
	case "P":
		return m, m.setPrime(ctrl.LocalDeviceID())
	}

	// Panel-specific keys
	switch m.focusedPanel {
	case PanelQueue:
		switch msg.String() {
		case "j", "down":
			m.queueView.SelectNext(len(m.session.Queue))
		case "k", "up":
			m.queueView.SelectPrev()
		case "enter":
			if i := m.queueView.Selected(); i >= 0 && i < len(m.session.Queue) {
				return m, m.do(func(ctx context.Context) error {
					return ctrl.PlayIndex(ctx, i)
				})
			}
		}
	case PanelDevices:
		switch msg.String() {
		case "j", "down":
			m.devicesView.SelectNext()
		case "k", "up":
			m.devicesView.SelectPrev()
		case "enter":
			if i := m.devicesView.Selected(); i >= 0 && i < len(m.devices) {
				return m, m.setPrime(m.devices[i].ID)
			}
		}
	}

	return m, nil
}

func (m Model) handlePromptKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showPrompt = false
		m.promptInput.Blur()
		return m, nil

	case "enter":
		req, err := engine.ParseRequest(m.promptInput.Value())
		if err != nil {
			m.promptErr = err
			return m, nil
		}
		m.showPrompt = false
		m.promptInput.Blur()
		ctrl := m.ctrl
		return m, m.do(func(ctx context.Context) error {
			return ctrl.Play(ctx, req)
		})
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	m.promptErr = nil
	return m, cmd
}

func (m Model) setVolume(percent int) tea.Cmd {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	ctrl := m.ctrl
	return m.do(func(context.Context) error {
		ctrl.SetVolume(percent)
		return nil
	})
}

func (m Model) seek(delta time.Duration) tea.Cmd {
	if !m.session.HasTrack() {
		return nil
	}
	target := m.session.Position + delta
	if target < 0 {
		target = 0
	}
	if m.session.Duration > 0 && target > m.session.Duration {
		target = m.session.Duration
	}
	ctrl := m.ctrl
	return m.do(func(context.Context) error {
		ctrl.Seek(target)
		return nil
	})
}

func (m Model) setPrime(deviceID string) tea.Cmd {
	ctrl := m.ctrl
	return m.do(func(context.Context) error {
		ctrl.SetPrime(deviceID)
		return nil
	})
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.showPrompt {
		return m.renderPrompt()
	}

	// Left: now playing over queue. Right: devices over history.
	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 40 / 100
	bottomHeight := m.height - topHeight - 2

	nowPlaying := m.nowPlaying.Render(&m.session, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(&m.session, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelQueue)
	devicesView := m.devicesView.Render(m.devices, m.session.PrimeID, m.ctrl.LocalDeviceID(), rightWidth-2, topHeight-2, m.focusedPanel == PanelDevices)
	historyView := m.historyView.Render(m.history, m.now, rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, devicesView, historyView)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:play  space:play/pause  n/p:next/prev  ←/→:seek  +/-:volume  s:shuffle  r:repeat  P:prime")

	if m.lastError != nil {
		status = styles.ErrorText.Render("Error: " + m.lastError.Error())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "Tandem - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Play an album, playlist or song
  Tab          Next panel
  Shift+Tab    Previous panel

  Playback
  ────────
  Space        Play/Pause
  n            Next track
  p            Previous track (or restart)
  ←/→, h/l     Seek 10s
  +/=          Volume up
  -            Volume down
  s            Toggle shuffle
  r            Cycle repeat (none, all, one)
  P            Make this device prime

  Queue Panel
  ───────────
  j/↓          Select next
  k/↑          Select previous
  Enter        Play selected

  Devices Panel
  ─────────────
  j/↓          Select next
  k/↑          Select previous
  Enter        Make selected device prime (★)

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderPrompt() string {
	var b strings.Builder

	b.WriteString(styles.Highlight.Render("Play"))
	b.WriteString("\n\n")
	b.WriteString(m.promptInput.View())
	b.WriteString("\n\n")

	if m.promptErr != nil {
		b.WriteString(styles.ErrorText.Render(m.promptErr.Error()))
		b.WriteString("\n\n")
	}
	b.WriteString(styles.Dim.Render("Enter:play  Esc:close"))

	content := lipgloss.NewStyle().
		Width(64).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run starts the TUI over ctrl and blocks until the user quits.
func Run(ctrl Controller, refreshRate time.Duration) error {
	p := tea.NewProgram(NewModel(ctrl, refreshRate), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
