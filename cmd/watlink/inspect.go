package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/config"
	"github.com/wippyai/watlink/linker"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [flags]",
		Short: "Build in memory and browse the text of every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stdout) {
				return fmt.Errorf("inspect needs a terminal; use build --dump to write the stage texts")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p := tea.NewProgram(newInspectModel(cmd.Context(), cfg), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	addInputFlags(cmd)
	return cmd
}

type stageEntry struct {
	label string
	text  string
	lines int
}

type focusArea int

const (
	focusList focusArea = iota
	focusText
	focusSearch
)

type inspectModel struct {
	ctx      context.Context
	cfg      *config.Config
	err      error
	entries  []stageEntry
	view     viewport.Model
	search   textinput.Model
	status   string
	selected int
	focus    focusArea
	width    int
	height   int
	loaded   bool
}

type stagesMsg struct {
	err     error
	entries []stageEntry
}

func newInspectModel(ctx context.Context, cfg *config.Config) *inspectModel {
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search"
	search.Width = 40
	return &inspectModel{
		ctx:    ctx,
		cfg:    cfg,
		view:   viewport.New(80, 20),
		search: search,
		width:  120,
		height: 30,
	}
}

func (m *inspectModel) Init() tea.Cmd {
	return m.buildStages
}

// buildStages runs every variant in memory, keeping stage texts. A failed
// variant still contributes the stages it reached through the dumper.
func (m *inspectModel) buildStages() tea.Msg {
	primary, secondary, err := readInputs(m.cfg)
	if err != nil {
		return stagesMsg{err: err}
	}
	return collectStages(m.ctx, m.cfg, primary, secondary)
}

// stageCollector is a linker.Dumper that keeps stage texts in memory.
type stageCollector struct {
	entries []stageEntry
}

func (c *stageCollector) Dump(v watlink.Variant, stage, text string) error {
	c.entries = append(c.entries, stageEntry{
		label: v.String() + " " + stage,
		text:  text,
		lines: strings.Count(text, "\n") + 1,
	})
	return nil
}

func collectStages(ctx context.Context, cfg *config.Config, primary, secondary string) stagesMsg {
	c := &stageCollector{}
	opts := cfg.Options()
	opts.Dumper = c
	var err error
	for _, v := range cfg.Variants() {
		if _, err = linker.Build(ctx, v, primary, secondary, opts); err != nil {
			break
		}
	}
	return stagesMsg{entries: c.entries, err: err}
}

func (m *inspectModel) listWidth() int {
	w := 12
	for _, e := range m.entries {
		w = max(w, len(e.label)+4)
	}
	return min(w, m.width/3)
}

func (m *inspectModel) resize() {
	m.view.Width = max(m.width-m.listWidth()-3, 20)
	m.view.Height = max(m.height-5, 5)
}

func numbered(text string) string {
	lines := strings.Split(text, "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%*d  %s\n", width, i+1, l)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m *inspectModel) show(i int) {
	if i < 0 || i >= len(m.entries) {
		return
	}
	m.selected = i
	m.view.SetContent(numbered(m.entries[i].text))
	m.view.GotoTop()
	m.status = fmt.Sprintf("%s, %d lines", m.entries[i].label, m.entries[i].lines)
}

// find scrolls to the next line after the top of the view that contains
// query, wrapping around.
func (m *inspectModel) find(query string) {
	if query == "" || len(m.entries) == 0 {
		return
	}
	lines := strings.Split(m.entries[m.selected].text, "\n")
	start := m.view.YOffset + 1
	for n := range lines {
		i := (start + n) % len(lines)
		if strings.Contains(lines[i], query) {
			m.view.SetYOffset(i)
			m.status = fmt.Sprintf("%q at line %d", query, i+1)
			return
		}
	}
	m.status = fmt.Sprintf("%q not found", query)
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case stagesMsg:
		m.loaded = true
		m.err = msg.err
		m.entries = msg.entries
		m.resize()
		m.show(0)
		return m, nil

	case tea.KeyMsg:
		if m.focus == focusSearch {
			switch msg.String() {
			case "enter":
				m.find(m.search.Value())
				m.search.Blur()
				m.focus = focusText
				return m, nil
			case "esc":
				m.search.Blur()
				m.focus = focusText
				return m, nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.focus == focusList {
				m.focus = focusText
			} else {
				m.focus = focusList
			}
			return m, nil
		case "/":
			m.focus = focusSearch
			m.search.SetValue("")
			return m, m.search.Focus()
		case "n":
			m.find(m.search.Value())
			return m, nil
		}

		if m.focus == focusList {
			switch msg.String() {
			case "up", "k":
				m.show(m.selected - 1)
			case "down", "j":
				m.show(m.selected + 1)
			case "enter", "right", "l":
				m.focus = focusText
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *inspectModel) View() string {
	if !m.loaded {
		return "Building..."
	}
	if len(m.entries) == 0 && m.err != nil {
		return errorStyle(os.Stdout).Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var list strings.Builder
	for i, e := range m.entries {
		line := "  " + e.label
		if i == m.selected {
			line = "> " + e.label
			if m.focus == focusList {
				line = selectedStyle.Render(line)
			}
		}
		list.WriteString(line)
		list.WriteByte('\n')
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("watlink stages"))
	b.WriteString(" ")
	b.WriteString(m.status)
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.listWidth()).Render(list.String()),
		" ",
		m.view.View(),
	))
	b.WriteString("\n")
	switch {
	case m.focus == focusSearch:
		b.WriteString(m.search.View())
	case m.err != nil:
		b.WriteString(errorStyle(os.Stdout).Render(m.err.Error()))
	default:
		b.WriteString(helpStyle.Render("↑/↓ stage • tab switch pane • / search • n next • q quit"))
	}
	return b.String()
}
