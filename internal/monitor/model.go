// Package monitor is the terminal view of a running controller: live speed
// and command plots plus keyboard tuning.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/san-kum/revkit/internal/control"
	"github.com/san-kum/revkit/internal/metrics"
	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

const (
	RefreshInterval = 100 * time.Millisecond
	RPMRange        = 310.0
	PWMRange        = float64(motor.CommandLimit)

	defaultWidth = 60
	graphHeight  = 10
	pwmHeight    = 5
)

var (
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2).Width(40)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeParamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	graphStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// Tuner applies validated edits; config.Store implements it.
type Tuner interface {
	Gains() motor.Gains
	SetGains(motor.Gains) error
	Waveform() waveform.Params
	SetWaveform(waveform.Params) error
}

// Exporter writes the visible history; export.Store implements it.
type Exporter interface {
	SaveCSV([]motor.Sample) (string, error)
	SavePNG([]motor.Sample) (string, error)
	SaveJSON([]motor.Sample) (string, error)
}

// LoopStatus reports on the control loop; control.Loop implements it.
type LoopStatus interface {
	State() control.LoopState
	Stats() control.Stats
	Terms() control.Terms
}

// Scorer keeps running metrics over every cycle; metrics.Recorder
// implements it.
type Scorer interface {
	Readings() []metrics.Reading
	Reset()
}

type TickMsg time.Time

// Model renders shared state and history. It never touches the device.
type Model struct {
	shared   *state.Shared
	history  *state.History
	tuner    Tuner
	exporter Exporter
	loop     LoopStatus
	scorer   Scorer
	logger   *zap.SugaredLogger

	snap     state.Snapshot
	rpm      []float64
	setpoint []float64
	pwm      []float64
	selected int
	status   string
	width    int
	showHelp bool
}

type Option func(*Model)

func WithExporter(e Exporter) Option { return func(m *Model) { m.exporter = e } }

func WithLoop(l LoopStatus) Option { return func(m *Model) { m.loop = l } }

func WithMetrics(s Scorer) Option { return func(m *Model) { m.scorer = s } }

func WithLogger(l *zap.SugaredLogger) Option { return func(m *Model) { m.logger = l } }

func NewModel(shared *state.Shared, history *state.History, tuner Tuner, opts ...Option) Model {
	m := Model{
		shared:  shared,
		history: history,
		tuner:   tuner,
		logger:  zap.NewNop().Sugar(),
		width:   defaultWidth,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.selected = (m.selected + 1) % len(params)
		case "shift+tab", "left", "h":
			m.selected = (m.selected - 1 + len(params)) % len(params)
		case "up", "k":
			m.adjust(1)
		case "down", "j":
			m.adjust(-1)
		case "w":
			w := m.tuner.Waveform()
			w.Kind = w.Kind.Next()
			m.setWaveform(w)
		case "1", "2", "3":
			w := m.tuner.Waveform()
			w.Kind = waveform.Kinds()[int(msg.String()[0]-'1')]
			m.setWaveform(w)
		case "e":
			m.export("CSV", func(s []motor.Sample) (string, error) { return m.exporter.SaveCSV(s) })
		case "p":
			m.export("plot", func(s []motor.Sample) (string, error) { return m.exporter.SavePNG(s) })
		case "x":
			m.export("JSON", func(s []motor.Sample) (string, error) { return m.exporter.SaveJSON(s) })
		case "r":
			if m.scorer != nil {
				m.scorer.Reset()
				m.status = "metrics reset"
			}
		case "?":
			m.showHelp = !m.showHelp
		}
		m.refresh()
	case tea.WindowSizeMsg:
		m.width = max(20, min(msg.Width-panelStyle.GetWidth()-12, 120))
	case TickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.snap = m.shared.Snapshot()
	m.rpm, m.setpoint, m.pwm = m.history.Series()
}

// adjust moves the selected parameter one step. Values inside the slider
// range stay inside it; a value loaded from outside the range steps freely.
func (m *Model) adjust(dir float64) {
	p := params[m.selected]
	g, w := m.tuner.Gains(), m.tuner.Waveform()
	cur := p.get(g, w)
	// Snap to the step grid.
	v := math.Round((cur+dir*p.step)/p.step) * p.step
	if cur >= p.min && cur <= p.max {
		v = motor.Clamp(v, p.min, p.max)
	}
	p.set(&g, &w, v)

	var err error
	if p.isGain() {
		err = m.tuner.SetGains(g)
	} else {
		err = m.tuner.SetWaveform(w)
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("%s = %s", p.name, p.render(v))
}

func (m *Model) setWaveform(w waveform.Params) {
	if err := m.tuner.SetWaveform(w); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "waveform " + string(w.Kind)
}

func (m *Model) export(what string, save func([]motor.Sample) (string, error)) {
	if m.exporter == nil {
		m.status = "export disabled"
		return
	}
	path, err := save(m.history.Snapshot())
	if err != nil {
		m.logger.Warnw("export failed", "kind", what, "error", err)
		m.status = fmt.Sprintf("%s export failed: %v", what, err)
		return
	}
	m.logger.Infow("exported history", "kind", what, "path", path)
	m.status = "saved " + path
}

func (m Model) View() string {
	var graphs strings.Builder
	graphs.WriteString(headerStyle.Render("REVKIT MOTOR PID") + "\n")

	if len(m.rpm) > 1 {
		chart := asciigraph.PlotMany(
			[][]float64{m.rpm, m.setpoint},
			asciigraph.Height(graphHeight),
			asciigraph.Width(m.width),
			asciigraph.LowerBound(-RPMRange),
			asciigraph.UpperBound(RPMRange),
			asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Red),
			asciigraph.Caption("RPM: current (cyan) / target (red)"),
		)
		graphs.WriteString(graphStyle.Render(chart) + "\n\n")
		chart = asciigraph.Plot(
			m.pwm,
			asciigraph.Height(pwmHeight),
			asciigraph.Width(m.width),
			asciigraph.LowerBound(-PWMRange),
			asciigraph.UpperBound(PWMRange),
			asciigraph.Caption("PWM"),
		)
		graphs.WriteString(graphStyle.Render(chart) + "\n")
	} else {
		graphs.WriteString(labelStyle.Render("waiting for data...") + "\n")
	}

	var s strings.Builder
	s.WriteString(labelStyle.Render("Target RPM") + valueStyle.Render(fmt.Sprintf("%.2f", m.snap.Setpoint)) + "\n")
	current := "-"
	if m.snap.Measured {
		current = fmt.Sprintf("%.2f", m.snap.Measurement)
	}
	s.WriteString(labelStyle.Render("Current RPM") + valueStyle.Render(current) + "\n")
	s.WriteString(labelStyle.Render("PWM Output") + valueStyle.Render(fmt.Sprintf("%d", m.snap.Command)) + "\n")
	if m.loop != nil {
		st := m.loop.Stats()
		terms := m.loop.Terms()
		s.WriteString(labelStyle.Render("Loop") + valueStyle.Render(m.loop.State().String()) + "\n")
		s.WriteString(labelStyle.Render("Cycles") + valueStyle.Render(fmt.Sprintf("%d (skipped %d)", st.Cycles, st.SkippedReads)) + "\n")
		s.WriteString(labelStyle.Render("P / I / D") + valueStyle.Render(fmt.Sprintf("%.0f / %.0f / %.0f", terms.P, terms.I, terms.D)) + "\n")
	}

	if m.scorer != nil {
		s.WriteString("\nMETRICS\n")
		for _, r := range m.scorer.Readings() {
			s.WriteString(labelStyle.Render(r.Name) + valueStyle.Render(formatReading(r)) + "\n")
		}
	}

	s.WriteString("\nWAVEFORM\n")
	for i, k := range waveform.Kinds() {
		mark := "( )"
		if k == m.snap.Waveform.Kind {
			mark = "(•)"
		}
		s.WriteString(fmt.Sprintf("  %s %d %s\n", mark, i+1, k))
	}

	s.WriteString("\nPARAMETERS\n")
	for i, p := range params {
		v := p.get(m.snap.Gains, m.snap.Waveform)
		barWidth := 10
		filled := int(p.ratio(v) * float64(barWidth))
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"
		line := fmt.Sprintf("%-10s %s %s", p.name, bar, p.render(v))
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.UnsetWidth().Render(line) + "\n")
		}
	}

	if m.status != "" {
		s.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}
	s.WriteString(helpStyle.Render("Tab:Select ↑↓:Tune W:Wave\nE:CSV P:Plot X:JSON ?:Help Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, graphs.String(), panelStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

func formatReading(r metrics.Reading) string {
	switch r.Name {
	case "saturation":
		return fmt.Sprintf("%.0f%%", 100*r.Value)
	case "rms_error":
		return fmt.Sprintf("%.2f rpm", r.Value)
	default:
		return fmt.Sprintf("%.1f", r.Value)
	}
}

const helpText = `
  Tab / →      next parameter
  Shift+Tab / ← previous parameter
  ↑ / k        increase selected parameter
  ↓ / j        decrease selected parameter
  w            cycle waveform
  1 2 3        square, sine, triangle
  e            export history as CSV
  p            export history as PNG
  x            export history and summary as JSON
  r            reset running metrics
  q            quit (motor is stopped)
`

// Run shows the monitor until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
