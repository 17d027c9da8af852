// Package tui renders live ingest progress. On a terminal the nested
// task stack is drawn with a spinner and redrawn in place; elsewhere
// progress degrades to plain log lines so piped output stays readable.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/docstash-cli/internal/progress"
)

// Ensure View implements the observer interface.
var _ progress.Observer = (*View)(nil)

// maxDetailLength caps the streamed detail line.
const maxDetailLength = 200

var (
	taskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	nestedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// View is a live progress renderer. Create it with NewView, pass it to
// the tracker as its observer, and Stop it when the run finishes.
type View struct {
	mu       sync.Mutex
	program  *tea.Program
	out      io.Writer
	plain    bool
	lastLine string
	done     chan struct{}
}

// progressMsg carries one tracker snapshot into the bubbletea model.
type progressMsg struct {
	stack  []string
	detail string
}

// finishedMsg tells the model to quit.
type finishedMsg struct{}

// NewView creates a progress view writing to out. The live renderer is
// only used when out is a terminal.
func NewView(out *os.File) *View {
	v := &View{out: out}
	if !term.IsTerminal(int(out.Fd())) {
		v.plain = true
		return v
	}

	m := newModel()
	v.program = tea.NewProgram(m, tea.WithOutput(out), tea.WithoutSignalHandler())
	v.done = make(chan struct{})
	go func() {
		defer close(v.done)
		_, _ = v.program.Run()
	}()
	return v
}

// Render displays one tracker snapshot.
func (v *View) Render(stack []string, detail string) {
	if v.plain {
		v.renderPlain(stack)
		return
	}
	v.program.Send(progressMsg{stack: stack, detail: detail})
}

// renderPlain prints the innermost task once per change, skipping the
// streamed detail chunks entirely.
func (v *View) renderPlain(stack []string) {
	if len(stack) == 0 {
		return
	}
	line := stack[len(stack)-1]

	v.mu.Lock()
	defer v.mu.Unlock()
	if line == v.lastLine {
		return
	}
	v.lastLine = line
	fmt.Fprintf(v.out, "* %s\n", line)
}

// Stop shuts the live renderer down and waits for the terminal to be
// restored.
func (v *View) Stop() {
	if v.plain || v.program == nil {
		return
	}
	v.program.Send(finishedMsg{})
	<-v.done
}

// model is the bubbletea model behind the live renderer.
type model struct {
	spinner spinner.Model
	stack   []string
	detail  string
}

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{spinner: s}
}

// Init starts the spinner tick.
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress snapshots and spinner ticks.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.stack = msg.stack
		m.detail = msg.detail
		return m, nil
	case finishedMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View draws the task stack, one line per nesting level.
func (m model) View() string {
	if len(m.stack) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, label := range m.stack {
		if i == 0 {
			sb.WriteString(m.spinner.View())
			sb.WriteString(" ")
			sb.WriteString(taskStyle.Render(label))
		} else {
			sb.WriteString(strings.Repeat("  ", i))
			sb.WriteString(nestedStyle.Render("- " + label))
		}
		sb.WriteString("\n")
	}

	if m.detail != "" {
		sb.WriteString(strings.Repeat("  ", len(m.stack)))
		sb.WriteString(detailStyle.Render(truncate(m.detail, maxDetailLength)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// truncate keeps the tail of s, which for streamed completions is the
// part still moving.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
