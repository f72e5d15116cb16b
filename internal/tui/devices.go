// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spexia/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0A030"))
)

var (
	quitKeys    = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKeys      = key.NewBinding(key.WithKeys("up", "k"))
	downKeys    = key.NewBinding(key.WithKeys("down", "j"))
	enterKeys   = key.NewBinding(key.WithKeys("enter"))
	backKeys    = key.NewBinding(key.WithKeys("esc"))
	refreshKeys = key.NewBinding(key.WithKeys("r"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

// DeviceListModel is the Bubble Tea model for browsing a host's devices and
// checking which configuration each would be captured with.
type DeviceListModel struct {
	host audio.Host
	dir  audio.Direction

	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Detail screen state for the selected device.
	config    *audio.StreamConfig
	configErr error
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return m.fetchDevices
}

// fetchDevices gets the available audio devices
func (m DeviceListModel) fetchDevices() tea.Msg {
	devices, err := m.host.Devices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// refreshDevices re-enumerates the host before listing, for hosts that
// cache their device list.
func (m DeviceListModel) refreshDevices() tea.Msg {
	if r, ok := m.host.(audio.Refresher); ok {
		if err := r.Refresh(); err != nil {
			return errMsg{err}
		}
	}
	return m.fetchDevices()
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.viewport.SetContent(m.content())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		m.err = nil
		if m.selectedIndex >= len(m.devices) {
			m.selectedIndex = max(0, len(m.devices)-1)
		}
		m.activeScreen = ListScreen
		m.viewport.SetContent(m.content())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, upKeys):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, downKeys):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, refreshKeys):
				cmds = append(cmds, m.refreshDevices)
			case key.Matches(msg, enterKeys):
				if len(m.devices) > 0 {
					m.activeScreen = DetailScreen
					m.config, m.configErr = m.host.DefaultConfig(m.devices[m.selectedIndex], m.dir)
				}
			}
		case DetailScreen:
			if key.Matches(msg, backKeys) {
				m.activeScreen = ListScreen
			}
		}
		m.viewport.SetContent(m.content())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render(fmt.Sprintf("Audio Devices (%s)", m.host.Name()))
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • r: Refresh • q: Quit")
	} else {
		title = titleStyle.Render("Device Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) content() string {
	if m.activeScreen == DetailScreen {
		return m.renderDeviceDetail()
	}
	return m.renderDevices()
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultInput {
			marker += " *in"
		}
		if device.IsDefaultOutput {
			marker += " *out"
		}

		deviceInfo := fmt.Sprintf("[%d] %s (%s)%s\n", i, device.Name, device.Kind(), marker)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n",
			device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceDetail shows the configuration the selected device would be
// captured with and whether the analyzer can use it.
func (m DeviceListModel) renderDeviceDetail() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Device: %s\n", device.Name)
	if device.ID != "" {
		fmt.Fprintf(&sb, "ID:     %s\n", device.ID)
	}
	fmt.Fprintf(&sb, "Direction: %s\n\n", m.dir)

	switch {
	case m.configErr != nil:
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Cannot query configuration: %v", m.configErr)))
	case m.config == nil:
		sb.WriteString(warnStyle.Render("No usable stream configuration."))
	default:
		fmt.Fprintf(&sb, "Default configuration: %s\n\n", m.config)
		if m.config.Channels == audio.Channels {
			sb.WriteString(highlightStyle.Render("Usable for stereo analysis."))
		} else {
			sb.WriteString(warnStyle.Render(fmt.Sprintf("Not usable: %v (has %d).", audio.ErrChannelCount, m.config.Channels)))
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

// NewDeviceListModel creates a new device list model
func NewDeviceListModel(host audio.Host, dir audio.Direction) DeviceListModel {
	return DeviceListModel{
		host:         host,
		dir:          dir,
		activeScreen: ListScreen,
	}
}

// StartDeviceListUI launches the Bubble Tea TUI for listing devices
func StartDeviceListUI(host audio.Host, dir audio.Direction) error {
	p := tea.NewProgram(
		NewDeviceListModel(host, dir),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
