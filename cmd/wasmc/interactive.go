package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/engine"
)

type interactiveModel struct {
	err      error
	gs       *globalState
	artifact *compiler.Artifact
	instance *engine.Instance
	closeFn  func()
	filename string
	result   string
	detail   string
	funcs    []compiler.FunctionInfo
	table    table.Model
	inputs   []textinput.Model
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
	stateShowTrampoline
)

func newInteractiveModel(gs *globalState, filename string) *interactiveModel {
	return &interactiveModel{
		gs:       gs,
		filename: filename,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err      error
	artifact *compiler.Artifact
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.compile
}

func (m *interactiveModel) compile() tea.Msg {
	a, err := compileFile(m.gs, m.filename)
	return loadedMsg{artifact: a, err: err}
}

func (m *interactiveModel) close() {
	if m.closeFn != nil {
		m.closeFn()
	}
	if m.artifact != nil {
		_ = m.artifact.Close(context.Background())
	}
}

func newFuncTable(funcs []compiler.FunctionInfo, a *compiler.Artifact) table.Model {
	rows := make([]table.Row, len(funcs))
	for i, fn := range funcs {
		ret := "-"
		if t, ok := a.Trampoline(fn.Index); ok {
			ret = t.Shape().Return.String()
		}
		rows[i] = table.Row{fn.Export, fn.Type.String(), fn.Sig.String(), ret}
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Export", Width: 20},
			{Title: "Signature", Width: 32},
			{Title: "Sig", Width: 6},
			{Title: "Return", Width: 10},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	t.SetStyles(s)
	return t
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult, stateShowTrampoline:
				m.back()
				return m, nil
			}

		case "t":
			if m.state == stateSelectFunc && len(m.funcs) > 0 {
				m.showTrampoline()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "esc":
			if m.state != stateSelectFunc {
				m.back()
				return m, nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.artifact = msg.artifact
		m.funcs = exports(msg.artifact)
		m.table = newFuncTable(m.funcs, msg.artifact)

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	switch m.state {
	case stateSelectFunc:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case stateInputArgs:
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

func (m *interactiveModel) back() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.detail = ""
	m.err = nil
}

func (m *interactiveModel) selected() compiler.FunctionInfo {
	return m.funcs[m.table.Cursor()]
}

func (m *interactiveModel) prepareInputs() {
	f := m.selected()
	m.inputs = make([]textinput.Model, len(f.Type.Params))
	for i, p := range f.Type.Params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) showTrampoline() {
	var b strings.Builder
	f := m.selected()
	if t, ok := m.artifact.Trampoline(f.Index); ok {
		describeTrampoline(&b, styler{tty: true}, t)
	}
	m.detail = b.String()
	m.state = stateShowTrampoline
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.instance == nil {
		inst, closeFn, err := instantiate(m.gs, m.artifact)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance, m.closeFn = inst, closeFn
	}

	f := m.selected()
	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = strings.TrimSpace(input.Value())
	}
	args, err := parseArgs(f.Type, raw)
	if err != nil {
		return callResultMsg{err: err}
	}

	results, err := m.instance.Call(m.gs.ctx, f.Export, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if len(results) == 0 {
		return callResultMsg{result: "(no results)"}
	}
	return callResultMsg{result: joinValues(results)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.artifact == nil {
		return "Compiling " + m.filename + "..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmc"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(m.artifact.Backend() + " " + m.artifact.Target().String()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("The module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString(m.table.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • t trampoline • q quit"))

	case stateInputArgs:
		f := m.selected()
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Export)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Type.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.selected()
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Export)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))

	case stateShowTrampoline:
		b.WriteString(m.detail)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
	}

	return b.String()
}

func runInteractive(gs *globalState, filename string) error {
	p := tea.NewProgram(newInteractiveModel(gs, filename), tea.WithAltScreen(), tea.WithContext(gs.ctx))
	_, err := p.Run()
	return err
}
