// Package viz renders a running schedule in the terminal: a strip chart
// of one tracked quantity plus per-step solver statistics.
package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dynstep/internal/stepper"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).MarginTop(1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg carries one accepted step into the view.
type StepMsg struct {
	Rec   stepper.StepRecord
	Value float64
}

// DoneMsg signals the end of the run.
type DoneMsg struct {
	Status stepper.Status
	Err    error
}

// Live is the bubbletea model for the live view.
type Live struct {
	quantity string
	history  []float64
	last     *StepMsg
	done     *DoneMsg
	width    int
}

func NewLive(quantity string) *Live {
	return &Live{
		quantity: quantity,
		history:  make([]float64, 0, historyCapacity),
		width:    80,
	}
}

func (l *Live) Init() tea.Cmd { return nil }

func (l *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return l, tea.Quit
		}
	case tea.WindowSizeMsg:
		l.width = msg.Width
	case StepMsg:
		l.last = &msg
		l.history = append(l.history, msg.Value)
		if len(l.history) > historyCapacity {
			l.history = l.history[1:]
		}
	case DoneMsg:
		l.done = &msg
	}
	return l, nil
}

func (l *Live) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("dynstep live — %s", l.quantity)))
	b.WriteString("\n")

	if len(l.history) >= 2 {
		graphWidth := l.width - 12
		if graphWidth < 20 {
			graphWidth = 20
		}
		graph := asciigraph.Plot(l.history,
			asciigraph.Height(10),
			asciigraph.Width(graphWidth),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if l.last != nil {
		rec := l.last.Rec
		rows := []struct {
			label string
			value string
		}{
			{"time", fmt.Sprintf("%.1f", rec.Time)},
			{"dt", fmt.Sprintf("%.3g", rec.Dt)},
			{l.quantity, fmt.Sprintf("%.4f", l.last.Value)},
			{"iterations", fmt.Sprintf("%d", rec.Convergence.Iterations)},
			{"retries", fmt.Sprintf("%d", rec.Retries)},
		}
		for _, row := range rows {
			b.WriteString(labelStyle.Render(row.label))
			b.WriteString(valueStyle.Render(row.value))
			b.WriteString("\n")
		}
	}

	if l.done != nil {
		status := l.done.Status.String()
		if l.done.Err != nil {
			status = fmt.Sprintf("%s (%v)", status, l.done.Err)
		}
		b.WriteString(doneStyle.Render("run " + status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}
