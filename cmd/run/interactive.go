package main

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/engine"
	"github.com/wippyai/mono-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// worker runs every runtime call on one locked OS thread. Bubble Tea runs
// commands on arbitrary goroutines.
type worker struct {
	jobs chan func()
}

func newWorker() *worker {
	w := &worker{jobs: make(chan func())}
	go func() {
		goruntime.LockOSThread()
		for job := range w.jobs {
			job()
		}
	}()
	return w
}

func (w *worker) do(fn func()) {
	done := make(chan struct{})
	w.jobs <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (w *worker) stop() {
	close(w.jobs)
}

type interactiveModel struct {
	err      error
	cfg      *config.Config
	worker   *worker
	session  *session
	assembly string
	class    string
	result   string
	methods  []methodInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type methodInfo struct {
	method     *runtime.Method
	resultType string
	params     []paramInfo
}

type paramInfo struct {
	name    string
	typ     monoruntime.TypeInfo
	typeStr string
}

type modelState int

const (
	stateSelectMethod modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(cfg *config.Config, assembly, class string) *interactiveModel {
	return &interactiveModel{
		cfg:      cfg,
		worker:   newWorker(),
		assembly: assembly,
		class:    class,
		state:    stateSelectMethod,
	}
}

type loadedMsg struct {
	err     error
	session *session
	methods []methodInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadClass
}

func (m *interactiveModel) loadClass() tea.Msg {
	var msg loadedMsg
	m.worker.do(func() {
		eng, err := engine.Open(m.cfg.Library)
		if err != nil {
			msg.err = err
			return
		}
		s, err := openSession(eng, m.cfg, m.assembly, m.class)
		if err != nil {
			msg.err = err
			return
		}
		msg.session = s
		for _, meth := range s.staticMethods() {
			sig := meth.Signature()
			mi := methodInfo{method: meth, resultType: typeName(sig.Return)}
			for i, p := range sig.Params {
				mi.params = append(mi.params, paramInfo{
					name:    fmt.Sprintf("arg%d", i),
					typ:     p,
					typeStr: typeName(p),
				})
			}
			msg.methods = append(msg.methods, mi)
		}
	})
	if msg.err == nil && len(msg.methods) == 0 {
		msg.err = fmt.Errorf("%s has no static methods", m.class)
	}
	return msg
}

func (m *interactiveModel) shutdown() {
	if m.session != nil {
		s := m.session
		m.worker.do(s.Close)
		m.session = nil
	}
	m.worker.stop()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			m.shutdown()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMethod && m.selected < len(m.methods)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectMethod:
				if len(m.methods) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callMethod
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callMethod

			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectMethod
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.methods = msg.methods

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.methods[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callMethod() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("class not loaded")}
	}

	f := m.methods[m.selected]
	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = input.Value()
	}

	var msg callResultMsg
	m.worker.do(func() {
		msg.result, msg.err = m.session.call(f.method, raw)
	})
	return msg
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.methods) == 0 {
		return "Loading class..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Mono Runner"))
	b.WriteString(" ")
	b.WriteString(m.session.class.FullName())
	b.WriteString(" in ")
	b.WriteString(m.assembly)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMethod:
		b.WriteString("Select a static method to call:\n\n")
		for i, f := range m.methods {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatMethod(f)))
			} else {
				b.WriteString(cursor + m.formatMethod(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.methods[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.method.Name())))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.methods[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.method.Descriptor())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatMethod(f methodInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	if f.resultType != "void" {
		result = " -> " + typeStyle.Render(f.resultType)
	}
	return funcStyle.Render(f.method.Name()) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(cfg *config.Config, assembly, class string) error {
	model := newInteractiveModel(cfg, assembly, class)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	if model.session != nil {
		model.shutdown()
	}
	return err
}
