// Package tui renders the live console in a terminal: the key grid with
// held keys highlighted, encoder readouts and the live synth settings.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"padsynth/internal/events"
	"padsynth/internal/mapping"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8be9fd"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	keyStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555")).Width(8).Align(lipgloss.Center)
	heldStyle   = keyStyle.BorderForeground(lipgloss.Color("#50fa7b")).Foreground(lipgloss.Color("#50fa7b")).Bold(true)
	emptyStyle  = keyStyle.BorderForeground(lipgloss.Color("#222")).Foreground(lipgloss.Color("#333"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888")).Width(12)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

// Source yields console messages; Next blocks until one arrives or the
// connection ends.
type Source interface {
	Next() (events.Message, error)
}

// EventMsg carries one console message into the model.
type EventMsg events.Message

// ClosedMsg reports that the source ended.
type ClosedMsg struct{ Err error }

// Listen reads the next message from src.
func Listen(src Source) tea.Cmd {
	return func() tea.Msg {
		msg, err := src.Next()
		if err != nil {
			return ClosedMsg{Err: err}
		}
		return EventMsg(msg)
	}
}

type Model struct {
	source  Source
	address string

	cfg      *mapping.Config
	state    events.State
	last     string
	events   int
	closed   bool
	err      error
	quitting bool
}

func NewModel(src Source, address string) Model {
	return Model{
		source:  src,
		address: address,
		state:   emptyState(),
	}
}

func emptyState() events.State {
	return events.State{
		Keys:        map[string]bool{},
		Frequencies: map[string]float64{},
		Encoders:    map[string]events.EncoderValue{},
	}
}

func (m Model) Init() tea.Cmd {
	return Listen(m.source)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case EventMsg:
		m = m.apply(events.Message(msg))
		return m, Listen(m.source)

	case ClosedMsg:
		m.closed = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) apply(msg events.Message) Model {
	m.events++
	switch msg.Type {
	case events.TypeState:
		if msg.State != nil {
			m.state = *msg.State
			if m.state.Keys == nil {
				m.state.Keys = map[string]bool{}
			}
			if m.state.Encoders == nil {
				m.state.Encoders = map[string]events.EncoderValue{}
			}
		}
		if msg.Config != nil {
			m.cfg = msg.Config
		}
	case events.TypeConfig:
		if msg.Config != nil {
			m.cfg = msg.Config
			m.state.Keys = map[string]bool{}
			m.state.Synth = msg.Config.Synth
		}
		m.last = "mapping updated"
	case events.TypeKey:
		if msg.Key == nil {
			break
		}
		m.state.Keys[msg.Key.ID] = msg.Key.Kind == "press"
		m.last = describeKey(msg.Key)
	case events.TypeEnc:
		if msg.Enc == nil {
			break
		}
		ev := msg.Enc
		m.state.Encoders[ev.Name] = events.EncoderValue{Action: ev.Action, Value: ev.Value, Delta: ev.Delta}
		applySynth(&m.state.Synth, ev)
		m.last = fmt.Sprintf("%s %+d -> %v", ev.Name, ev.Delta, formatValue(ev.Value))
	}
	return m
}

func describeKey(ev *events.KeyEvent) string {
	line := fmt.Sprintf("%s %s", ev.ID, ev.Kind)
	if ev.Note != nil {
		line += " " + *ev.Note
	}
	if ev.Freq != nil {
		line += fmt.Sprintf(" (%.2f Hz)", *ev.Freq)
	}
	return line
}

// applySynth mirrors encoder-driven changes into the live synth readout.
// Values arrive JSON-decoded, so numbers are float64.
func applySynth(s *mapping.Synth, ev *events.EncoderEvent) {
	switch ev.Action {
	case mapping.ActionTranspose:
		if v, ok := ev.Value.(float64); ok {
			s.Transpose = int(v)
		}
	case mapping.ActionVolume:
		if v, ok := ev.Value.(float64); ok {
			s.Volume = v
		}
	case mapping.ActionWaveform:
		if v, ok := ev.Value.(string); ok {
			s.Waveform = v
		}
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
	default:
		return fmt.Sprint(v)
	}
}

// Closed reports whether the source ended, with its error.
func (m Model) Closed() (bool, error) {
	return m.closed, m.err
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("padsynth"))
	b.WriteString(statusStyle.Render("  " + m.address))
	b.WriteString("\n\n")

	if m.cfg == nil {
		b.WriteString(dimStyle.Render("waiting for state..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderGrid())
		b.WriteString("\n")
		b.WriteString(m.renderSynth())
		b.WriteString("\n")
		if enc := m.renderEncoders(); enc != "" {
			b.WriteString(enc)
			b.WriteString("\n")
		}
	}

	if m.last != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render("last: " + m.last))
		b.WriteString("\n")
	}
	if m.closed && m.err != nil {
		b.WriteString(errorStyle.Render("connection closed: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// renderGrid lays keys out by matrix row and column name.
func (m Model) renderGrid() string {
	rows := sortedNames(m.cfg.Matrix.Rows)
	cols := sortedNames(m.cfg.Matrix.Cols)
	at := make(map[[2]string]mapping.Key, len(m.cfg.Matrix.Keys))
	for _, key := range m.cfg.Matrix.Keys {
		at[[2]string{key.Row, key.Col}] = key
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			key, ok := at[[2]string{row, col}]
			if !ok {
				cells = append(cells, emptyStyle.Render("·\n"))
				continue
			}
			body := key.DisplayLabel() + "\n" + key.Note
			if m.state.Keys[key.ID] {
				cells = append(cells, heldStyle.Render(body))
			} else {
				cells = append(cells, keyStyle.Render(body))
			}
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderSynth() string {
	s := m.state.Synth
	parts := []string{
		labelStyle.Render("waveform") + s.Waveform,
		labelStyle.Render("volume") + fmt.Sprintf("%.2f", s.Volume),
		labelStyle.Render("transpose") + fmt.Sprintf("%+d", s.Transpose),
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderEncoders() string {
	if len(m.cfg.Encoders) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.cfg.Encoders))
	for _, enc := range m.cfg.Encoders {
		value := dimStyle.Render("-")
		if v, ok := m.state.Encoders[enc.Name]; ok {
			value = fmt.Sprintf("%s (%+d)", formatValue(v.Value), v.Delta)
		}
		lines = append(lines, labelStyle.Render(enc.Name)+dimStyle.Render(fmt.Sprintf("%-10s", enc.Action))+value)
	}
	return "\n" + strings.Join(lines, "\n")
}

func sortedNames(lines map[string]int) []string {
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
