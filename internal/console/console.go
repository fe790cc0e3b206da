// Package console is a keyboard front end for the motion controller.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/motion"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxLogs      = 6
	pollInterval = 200 * time.Millisecond
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	stateStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	haltStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	logStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// Executor queues commands in call order.
type Executor interface {
	Submit(ctx context.Context, cmd motion.Command) (*motion.Pending, error)
	Status() motion.Status
}

var keyCommands = map[string]motion.Command{
	"t":     {Action: motion.ActionStand},
	"g":     {Action: motion.ActionSit},
	"w":     {Action: motion.ActionWalk, Direction: motion.Forward},
	"up":    {Action: motion.ActionWalk, Direction: motion.Forward},
	"s":     {Action: motion.ActionWalk, Direction: motion.Backward},
	"down":  {Action: motion.ActionWalk, Direction: motion.Backward},
	"a":     {Action: motion.ActionRotate, Direction: motion.Left},
	"left":  {Action: motion.ActionRotate, Direction: motion.Left},
	"d":     {Action: motion.ActionRotate, Direction: motion.Right},
	"right": {Action: motion.ActionRotate, Direction: motion.Right},
	" ":     {Action: motion.ActionStop},
	"e":     {Action: motion.ActionEmergencyStop},
}

type resultMsg struct {
	cmd motion.Command
	err error
}

type tickMsg time.Time

type Model struct {
	ctx      context.Context
	executor Executor
	status   motion.Status
	cycles   int
	logs     []string
	quitting bool
}

func NewModel(ctx context.Context, executor Executor) Model {
	return Model{
		ctx:      ctx,
		executor: executor,
		status:   executor.Status(),
	}
}

func (m *Model) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// execute queues cmd from Update, bubbletea runs the returned tea.Cmd
// concurrently with later ones so only the wait happens there.
func (m Model) execute(cmd motion.Command) tea.Cmd {
	pending, err := m.executor.Submit(m.ctx, cmd)
	if err != nil {
		pending = motion.Resolved(err)
	}
	return func() tea.Msg {
		return resultMsg{cmd: cmd, err: pending.Wait(m.ctx)}
	}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return poll()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
			m.cycles = int(key[0] - '0')
			m.addLog(fmt.Sprintf("cycles set to %d", m.cycles))
			return m, nil
		}

		cmd, ok := keyCommands[key]
		if !ok {
			return m, nil
		}
		if cmd.Action == motion.ActionWalk || cmd.Action == motion.ActionRotate {
			cmd.Cycles = m.cycles
		}
		return m, m.execute(cmd)

	case resultMsg:
		if msg.err != nil {
			m.addLog(fmt.Sprintf("%s: %s", msg.cmd, msg.err))
		} else {
			m.addLog(msg.cmd.String())
		}
		m.status = m.executor.Status()
		return m, nil

	case tickMsg:
		m.status = m.executor.Status()
		return m, poll()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "Console stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Hexapod Console"))
	sb.WriteString("\n\n")

	sb.WriteString("State: ")
	sb.WriteString(stateStyle.Render(m.status.State.String()))
	if m.status.Halted {
		sb.WriteString("  ")
		sb.WriteString(haltStyle.Render("OUTPUTS ZEROED"))
	}
	sb.WriteString("\n")

	gaitName := m.status.Gait.Pattern
	if gaitName == "" {
		gaitName = "none"
	}
	sb.WriteString(fmt.Sprintf("Gait: %s (%s) phase %d cycle %d\n", gaitName, m.status.Gait.State, m.status.Gait.Phase, m.status.Gait.Cycle))

	cycles := "until stop"
	if m.cycles > 0 {
		cycles = fmt.Sprintf("%d", m.cycles)
	}
	sb.WriteString(fmt.Sprintf("Cycles: %s\n\n", cycles))

	sb.WriteString(statusStyle.Render("t stand | g sit | w/s walk | a/d rotate | space stop | e estop | 0-9 cycles | q quit"))
	sb.WriteString("\n")

	logLines := statusStyle.Render("no commands yet")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	return sb.String()
}

// Run blocks until the operator quits.
func Run(ctx context.Context, executor Executor) error {
	p := tea.NewProgram(NewModel(ctx, executor), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		return fmt.Errorf("console stopped: %w", err)
	}
	return nil
}
