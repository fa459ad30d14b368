package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/placeholder"
	"github.com/rubiojr/fmsearch/pkg/render"
	"github.com/urfave/cli/v3"
)

const promptHelp = `Commands (type them on an empty input, then enter):
  :history    show recent searches
  :replay N   search history entry N again
  :forget     clear search history
  :clear      clear the input and results
  :quit       exit`

var keysStyle = lipgloss.NewStyle().Faint(true)

const keysLine = "enter search or open · ↑/↓ select · tab more · esc clear · :help · ctrl+c quit"

// PromptCommand creates the interactive prompt command
func PromptCommand() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Interactive search-as-you-type prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Search endpoint (overrides widget.webhook_url)",
			},
			&cli.BoolFlag{
				Name:  "animate",
				Usage: "Animate the placeholder with example queries while the input is empty",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runPrompt(ctx, cfg, c.String("endpoint"), c.Bool("animate"), os.Stdin, os.Stdout)
		},
	}
}

func runPrompt(ctx context.Context, cfg *config.Config, endpoint string, animate bool, in io.Reader, w io.Writer) error {
	queue := newPanelQueue()
	s, err := openSession(cfg, endpoint, render.Sink(queue.push))
	if err != nil {
		return err
	}
	defer s.Close()

	var cycle *placeholder.Cycle
	if animate {
		cycle = placeholder.New(cfg.Widget.PlaceholderExamples, cfg.Widget.PlaceholderRotationDelay.Duration)
	}
	m := newPromptModel(s, render.NewTerminalView(w, cfg.Widget.Theme), cycle)

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(w))
	pumpCtx, stop := context.WithCancel(ctx)
	defer stop()
	go queue.run(pumpCtx, p.Send)

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// panelMsg carries one controller transition into the program.
type panelMsg render.Event

type placeholderTickMsg struct{ id int }

// panelQueue hands view transitions to the program. The controller calls
// its View under a lock, so push never blocks.
type panelQueue struct {
	mu     sync.Mutex
	events []render.Event
	wake   chan struct{}
}

func newPanelQueue() *panelQueue {
	return &panelQueue{wake: make(chan struct{}, 1)}
}

func (q *panelQueue) push(e render.Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *panelQueue) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		q.mu.Lock()
		events := q.events
		q.events = nil
		q.mu.Unlock()
		for _, e := range events {
			send(panelMsg(e))
		}
	}
}

// promptModel is the interactive widget: every edit of the input goes to
// the controller, and panel transitions come back as panelMsg.
type promptModel struct {
	s       *session
	panel   *render.TerminalView
	input   textinput.Model
	spinner spinner.Model

	cycle     *placeholder.Cycle
	animID    int
	animating bool
	boot      tea.Cmd

	ev       render.Event
	selected int
	history  []string
	status   string
	quitting bool
}

func newPromptModel(s *session, panel *render.TerminalView, cycle *placeholder.Cycle) promptModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder.Default
	ti.CharLimit = 200
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := promptModel{
		s:        s,
		panel:    panel,
		input:    ti,
		spinner:  sp,
		cycle:    cycle,
		selected: -1,
	}
	m.boot = m.idle()
	return m
}

func (m promptModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.boot)
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case panelMsg:
		m.ev = render.Event(msg)
		if m.ev.State != controller.StateResults || m.selected >= m.ev.Page.Shown() {
			m.selected = -1
		}
		if m.ev.State == controller.StateLoading {
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if m.ev.State != controller.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case placeholderTickMsg:
		if !m.animating || msg.id != m.animID {
			return m, nil
		}
		frame, delay := m.cycle.Next()
		m.input.Placeholder = frame
		return m, m.tick(delay)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyEsc:
		m.input.Reset()
		m.status = ""
		m.s.ctrl.Clear()
		return m, m.idle()
	case tea.KeyTab:
		m.more()
		return m, nil
	case tea.KeyUp:
		m.move(-1)
		return m, nil
	case tea.KeyDown:
		m.move(1)
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()
	if value == before {
		return m, cmd
	}
	m.status = ""
	m.selected = -1

	switch {
	case value == "":
		m.s.ctrl.OnInputChanged("")
		return m, tea.Batch(cmd, m.idle())
	case strings.HasPrefix(value, ":"):
		// a command is being typed
		m.stopAnimation()
		return m, cmd
	}
	m.stopAnimation()
	m.s.ctrl.OnInputChanged(value)
	return m, cmd
}

func (m promptModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if m.selected >= 0 {
		m.open(m.selected)
		return m, nil
	}
	if !strings.HasPrefix(line, ":") {
		m.s.ctrl.FireSearch(m.input.Value())
		return m, nil
	}

	m.input.Reset()
	m.status = ""
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	case ":help":
		m.status = promptHelp
	case ":history":
		m.history = m.s.history.List(context.Background())
		if len(m.history) == 0 {
			m.status = "No recent searches."
			break
		}
		m.s.ctrl.OnFocus("")
	case ":replay":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(m.history) {
			m.status = "usage: :replay N (see :history)"
			break
		}
		entry := m.history[n-1]
		m.input.SetValue(entry)
		m.input.CursorEnd()
		m.stopAnimation()
		m.s.ctrl.ReplayHistory(entry)
		return m, nil
	case ":forget":
		m.s.ctrl.ClearHistory()
		m.history = nil
		m.status = "Search history cleared."
	case ":clear":
		m.s.ctrl.Clear()
		return m, m.idle()
	default:
		m.status = fmt.Sprintf("Unknown command %s, try :help", name)
	}
	return m, m.startAnimation()
}

func (m *promptModel) open(i int) {
	prod, ok := m.s.ctrl.OpenResult(i)
	if !ok {
		m.status = fmt.Sprintf("No result %d.", i+1)
		return
	}
	m.status = fmt.Sprintf("%s\n  %s", prod.Name(), prod.URL())
}

func (m *promptModel) move(delta int) {
	if m.ev.State != controller.StateResults {
		return
	}
	m.selected = max(-1, min(m.ev.Page.Shown()-1, m.selected+delta))
}

func (m *promptModel) more() {
	if !m.s.ctrl.LoadMore() {
		m.status = "No more results."
	}
}

// idle is the focused, empty input: history if any, and the placeholder.
func (m *promptModel) idle() tea.Cmd {
	m.history = m.s.history.List(context.Background())
	m.s.ctrl.OnFocus("")
	return m.startAnimation()
}

func (m *promptModel) startAnimation() tea.Cmd {
	if m.cycle == nil || m.cycle.Empty() {
		m.input.Placeholder = placeholder.Default
		return nil
	}
	if m.animating {
		return nil
	}
	m.animating = true
	m.animID++
	m.cycle.Reset()
	m.input.Placeholder = ""
	return m.tick(0)
}

func (m *promptModel) stopAnimation() {
	if m.animating {
		m.animating = false
		m.animID++
	}
}

func (m promptModel) tick(d time.Duration) tea.Cmd {
	id := m.animID
	return tea.Tick(d, func(time.Time) tea.Msg {
		return placeholderTickMsg{id: id}
	})
}

func (m promptModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	if m.ev.State == controller.StateLoading {
		b.WriteString("\n\n" + m.spinner.View() + " " + render.LoadingMessage)
	} else if panel := m.panel.Panel(m.ev); panel != "" {
		b.WriteString("\n\n" + panel)
	}
	if m.selected >= 0 {
		fmt.Fprintf(&b, "\n\n→ %d. %s", m.selected+1, m.ev.Page.Items[m.selected].Name())
	}
	if m.status != "" {
		b.WriteString("\n\n" + m.status)
	}
	b.WriteString("\n\n" + keysStyle.Render(keysLine) + "\n")
	return b.String()
}
