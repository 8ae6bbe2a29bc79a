// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and driving a controller",
	Long: `Full-screen monitor for a controller connection.

Shows the live index values, stream statistics, and an event log. Type
an index=value pair in the input box and press Enter to transmit a DATA
frame without leaving the monitor.

Keys:
  q / ctrl+c  quit
  tab         focus the send box`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorModel struct {
	connInfo string
	conn     Connection
	codec    *xkop.Codec
	stats    *xkop.Statistics

	values  map[uint8]uint16
	log     []monitorLogEntry
	logView viewport.Model
	sendBox textinput.Model

	width    int
	height   int
	quitting bool
}

// Messages
type monitorTickMsg time.Time
type monitorFrameMsg xkop.Message
type monitorDecodeErrMsg struct{ err error }
type monitorReadErrMsg struct{ err error }

func initialMonitorModel(conn Connection, connInfo string, codec *xkop.Codec, stats *xkop.Statistics) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "index=value"
	ti.CharLimit = 16
	ti.Width = 20

	vp := viewport.New(78, 10)

	return monitorModel{
		connInfo: connInfo,
		conn:     conn,
		codec:    codec,
		stats:    stats,
		values:   make(map[uint8]uint16),
		logView:  vp,
		sendBox:  ti,
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), tea.EnterAltScreen)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if !m.sendBox.Focused() {
				m.quitting = true
				return m, tea.Quit
			}
		case "tab":
			if m.sendBox.Focused() {
				m.sendBox.Blur()
			} else {
				return m, m.sendBox.Focus()
			}
			return m, nil
		case "enter":
			if m.sendBox.Focused() {
				m.transmit(m.sendBox.Value())
				m.sendBox.SetValue("")
				return m, nil
			}
		}
		if m.sendBox.Focused() {
			var cmd tea.Cmd
			m.sendBox, cmd = m.sendBox.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logView.Width = msg.Width - 4
		if h := msg.Height - 16; h > 3 {
			m.logView.Height = h
		}

	case monitorTickMsg:
		return m, monitorTickCmd()

	case monitorFrameMsg:
		for _, r := range msg.Records {
			m.values[r.Index] = r.Value
		}
		if msg.Type == xkop.TypeStatus {
			m.addLog("STATUS keep-alive", false)
		}

	case monitorDecodeErrMsg:
		m.addLog(fmt.Sprintf("DECODE ERROR: %v", msg.err), true)

	case monitorReadErrMsg:
		m.addLog(fmt.Sprintf("READ ERROR: %v", msg.err), true)
	}

	return m, nil
}

func (m *monitorModel) addLog(message string, isError bool) {
	m.log = append(m.log, monitorLogEntry{timestamp: time.Now(), message: message, isError: isError})
	if len(m.log) > 200 {
		m.log = m.log[len(m.log)-200:]
	}
}

// transmit parses an index=value pair from the send box and writes a
// single-record DATA frame.
func (m *monitorModel) transmit(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	rec, err := parseRecordArg(input)
	if err != nil {
		m.addLog(fmt.Sprintf("SEND: %v", err), true)
		return
	}
	frame, err := m.codec.Encode(xkop.TypeData, []xkop.Record{rec})
	if err != nil {
		m.addLog(fmt.Sprintf("SEND: %v", err), true)
		return
	}
	if _, err := m.conn.Write(frame); err != nil {
		m.addLog(fmt.Sprintf("SEND: %v", err), true)
		return
	}
	m.values[rec.Index] = rec.Value
	m.addLog(fmt.Sprintf("sent [%d] = %d", rec.Index, rec.Value), false)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("XKOPBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | 'q' quit, tab to send", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics line
	snap := m.stats.Snapshot()
	s.WriteString(labelStyle.Render("Frames: "))
	s.WriteString(valueStyle.Render(fmt.Sprintf("%d total, %d data, %d status", snap.TotalFrames, snap.DataFrames, snap.StatusFrames)))
	s.WriteString(labelStyle.Render("   Errors: "))
	s.WriteString(valueStyle.Render(fmt.Sprintf("%d checksum, %d bytes dropped", snap.ChecksumErrors, snap.BytesDropped)))
	s.WriteString(labelStyle.Render("   Rate: "))
	s.WriteString(valueStyle.Render(fmt.Sprintf("%.1f/s", snap.FrameRate)))
	s.WriteString("\n\n")

	// Values panel, 8 indices per row
	indices := make([]int, 0, len(m.values))
	for idx := range m.values {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	var values strings.Builder
	if len(indices) == 0 {
		values.WriteString(headerStyle.Render("no values observed yet"))
	}
	for i, idx := range indices {
		values.WriteString(fmt.Sprintf("[%3d]=%-6d ", idx, m.values[uint8(idx)]))
		if (i+1)%8 == 0 {
			values.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(values.String()))
	s.WriteString("\n\n")

	// Event log panel
	var logLines []string
	for _, entry := range m.log {
		line := fmt.Sprintf("%s %s", entry.timestamp.Format("15:04:05"), entry.message)
		if entry.isError {
			line = errorStyle.Render(line)
		}
		logLines = append(logLines, line)
	}
	m.logView.SetContent(strings.Join(logLines, "\n"))
	m.logView.GotoBottom()
	s.WriteString(boxStyle.Render(m.logView.View()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Send: "))
	s.WriteString(m.sendBox.View())
	s.WriteString("\n")

	return s.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	policy := xkop.EnforceChecksum
	if bypassChecksum {
		policy = xkop.BypassChecksum
	}
	codec := xkop.NewCodec(policy)
	decoder := xkop.NewStreamDecoder(codec)

	m := initialMonitorModel(conn, connInfo, codec, decoder.Stats())
	p := tea.NewProgram(m)

	decoder.ErrorFunc = func(err error) {
		p.Send(monitorDecodeErrMsg{err: err})
	}

	// Reader goroutine
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				p.Send(monitorReadErrMsg{err: err})
				if err == ErrConnectionClosed {
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}

			for _, msg := range decoder.Feed(buf[:n]) {
				p.Send(monitorFrameMsg(msg))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
