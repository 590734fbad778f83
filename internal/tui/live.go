// Package tui is a terminal render-sync viewer. The bubbletea update loop
// triggers control ticks, draws the scene after each one, and maps keys
// onto the command manager for teleoperation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/metrics"
)

const (
	canvasWidth     = 60
	canvasHeight    = 20
	historyCapacity = 300
	defaultStep     = 0.1
)

type tickMsg time.Time

type Options struct {
	// Period between control ticks. Defaults to the scene's control dt.
	Period time.Duration
	// Step is the command change applied per key press.
	Step    float64
	Metrics *metrics.Set
}

type Model struct {
	orch     *loop.Orchestrator
	period   time.Duration
	step     float64
	metrics  *metrics.Set
	canvas   *Canvas
	selected int
	series   []float64
	err      error
	showHelp bool
}

func New(o *loop.Orchestrator, opts Options) Model {
	if opts.Period <= 0 {
		opts.Period = time.Duration(o.Binding().ControlDt() * float64(time.Second))
	}
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	o.Subscribe(opts.Metrics)

	c := NewCanvas(canvasWidth, canvasHeight)
	c.SetView(-3, 3, -0.5, 4.5)
	return Model{
		orch:    o,
		period:  opts.Period,
		step:    opts.Step,
		metrics: opts.Metrics,
		canvas:  c,
		series:  make([]float64, 0, historyCapacity),
	}
}

// Run blocks until the user quits.
func Run(o *loop.Orchestrator, opts Options) error {
	if err := o.Start(); err != nil {
		return err
	}
	_, err := tea.NewProgram(New(o, opts), tea.WithAltScreen()).Run()
	return err
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.advance()
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	if m.orch.State() != loop.Running {
		return
	}
	err := m.orch.Tick(context.Background())
	if err != nil && !errors.Is(err, loop.ErrTickDropped) {
		m.err = err
		return
	}
	if act := m.orch.Params().Action; len(act) > 0 {
		m.series = append(m.series, act[0])
		if len(m.series) > historyCapacity {
			m.series = m.series[1:]
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cmds := m.orch.Binding().Commands
	fields := []string(nil)
	if cmds != nil {
		fields = cmds.Fields()
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "p":
		switch m.orch.State() {
		case loop.Running:
			m.orch.Pause()
		case loop.Paused:
			m.orch.Resume()
		default:
			m.err = nil
			m.orch.Start()
		}
	case "r":
		m.orch.Reset()
		m.metrics.Reset()
		m.series = m.series[:0]
		m.err = nil
	case "?":
		m.showHelp = !m.showHelp
	case "tab":
		if len(fields) > 0 {
			m.selected = (m.selected + 1) % len(fields)
		}
	case "up", "k":
		if len(fields) > 0 {
			cmds.Add(fields[m.selected%len(fields)], m.step)
		}
	case "down", "j":
		if len(fields) > 0 {
			cmds.Add(fields[m.selected%len(fields)], -m.step)
		}
	case "0":
		if len(fields) > 0 {
			cmds.Set(fields[m.selected%len(fields)], 0)
		}
	}
	return m, nil
}

func (m Model) View() string {
	b := m.orch.Binding()
	p := m.orch.Params()

	m.canvas.Clear()
	m.canvas.DrawBodies(b.Physics)

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(b.Name)) + "\n")
	s.WriteString(m.status() + "\n")
	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", p.Time))
	row("Tick", fmt.Sprintf("%d", p.Tick))
	row("Episode", p.Episode.Phase.String())
	row("Action", formatVector(p.Action))
	row("Dropped", fmt.Sprintf("%d", p.Dropped))
	row("Infer fails", fmt.Sprintf("%d", p.InferenceFailures))

	values := m.metrics.Values()
	for _, name := range m.metrics.Names() {
		row(name, fmt.Sprintf("%.3f", values[name]))
	}

	if b.Commands != nil {
		fields := b.Commands.Fields()
		if len(fields) > 0 {
			s.WriteString("\n")
		}
		for i, f := range fields {
			v, _ := b.Commands.Get(f)
			label := labelStyle.Render(f)
			if i == m.selected%len(fields) {
				label = selectedStyle.Width(14).Render("> " + f)
			}
			s.WriteString(label + valueStyle.Render(fmt.Sprintf("%+.2f", v)) + "\n")
		}
	}

	if len(m.series) > 1 {
		chart := asciigraph.Plot(m.series, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("action[0]"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	if m.showHelp {
		s.WriteString(helpStyle.Render("space/p pause  r reset  tab field  up/down command  0 zero  q quit"))
	} else {
		s.WriteString(helpStyle.Render("? help"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		canvasStyle.Render(m.canvas.String()),
		statsStyle.Render(s.String()),
	)
}

func (m Model) status() string {
	switch m.orch.State() {
	case loop.Running:
		return runningStyle.Render("RUNNING")
	case loop.Paused:
		return pausedStyle.Render("PAUSED")
	default:
		return stoppedStyle.Render("STOPPED")
	}
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%+.2f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
