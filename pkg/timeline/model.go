// Package timeline is a terminal browser for the rollup levels.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/pagetrail/pkg/types"
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

const loadTimeout = 10 * time.Second

// Source supplies the entries of one level, oldest first.
type Source interface {
	GetLevel(ctx context.Context, level int) ([]types.Node, error)
}

type loadedMsg struct {
	level int
	nodes []types.Node
	err   error
}

// Model is the bubbletea model. Entries are shown newest first.
type Model struct {
	source Source
	keys   keyMap

	level  int
	nodes  []types.Node
	cursor int
	offset int

	viewport viewport.Model
	width    int
	height   int

	loading bool
	status  string
	err     error
}

// New returns a model showing level 0.
func New(source Source) Model {
	return Model{
		source:   source,
		keys:     defaultKeyMap(),
		viewport: viewport.New(80, 10),
		width:    80,
		height:   24,
		loading:  true,
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(source Source) error {
	_, err := tea.NewProgram(New(source), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load(m.level)
}

func (m Model) load(level int) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		nodes, err := source.GetLevel(ctx, level)
		return loadedMsg{level: level, nodes: nodes, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case loadedMsg:
		if msg.level != m.level {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		m.nodes = reverse(msg.nodes)
		if m.cursor >= len(m.nodes) {
			m.cursor = max(len(m.nodes)-1, 0)
		}
		m.offset = 0
		m.refreshDetail()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.refreshDetail()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.nodes)-1 {
			m.cursor++
			m.refreshDetail()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextLevel):
		return m.switchLevel((m.level + 1) % types.NumLevels)

	case key.Matches(msg, m.keys.PrevLevel):
		return m.switchLevel((m.level + types.NumLevels - 1) % types.NumLevels)

	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		m.status = ""
		return m, m.load(m.level)

	case key.Matches(msg, m.keys.Copy):
		m.copySelected()
		return m, nil
	}

	if s := msg.String(); len(s) == 1 && s[0] >= '0' && int(s[0]-'0') < types.NumLevels {
		return m.switchLevel(int(s[0] - '0'))
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) switchLevel(level int) (tea.Model, tea.Cmd) {
	if level == m.level && !m.loading {
		return m, nil
	}
	m.level = level
	m.nodes = nil
	m.cursor = 0
	m.offset = 0
	m.loading = true
	m.status = ""
	m.err = nil
	m.refreshDetail()
	return m, m.load(level)
}

func (m *Model) copySelected() {
	n, ok := m.selected()
	if !ok {
		return
	}
	text := n.Summary
	if text == "" {
		text = n.URL
	}
	if err := clipboardWriteAll(text); err != nil {
		m.status = errorStyle.Render("Failed to copy: " + err.Error())
		return
	}
	m.status = statusStyle.Render("Copied to clipboard")
}

func (m Model) selected() (types.Node, bool) {
	if m.cursor < 0 || m.cursor >= len(m.nodes) {
		return types.Node{}, false
	}
	return m.nodes[m.cursor], true
}

// listHeight is the number of list rows; the detail pane gets the rest.
func (m Model) listHeight() int {
	return max((m.height-6)/3, 3)
}

func (m *Model) layout() {
	m.viewport.Width = max(m.width-4, 20)
	m.viewport.Height = max(m.height-m.listHeight()-8, 3)
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	rows := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}

	n, ok := m.selected()
	if !ok {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(Detail(n, m.viewport.Width))
	m.viewport.GotoTop()
}

func (m Model) View() string {
	var b strings.Builder

	tabs := make([]string, types.NumLevels)
	for i, name := range LevelNames {
		label := fmt.Sprintf("%d %s", i, name)
		if i == m.level {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render(LevelDescriptions[m.level]))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error loading timeline: " + m.err.Error()))
		b.WriteString("\n")
	case m.loading:
		b.WriteString("Loading timeline data...\n")
	case len(m.nodes) == 0:
		b.WriteString(fmt.Sprintf("No %s available yet.\n", strings.ToLower(LevelNames[m.level])))
	default:
		end := min(m.offset+m.listHeight(), len(m.nodes))
		for i := m.offset; i < end; i++ {
			label := ItemLabel(m.nodes[i])
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> " + label))
			} else {
				b.WriteString(itemStyle.Render("  " + label))
			}
			b.WriteString("\n")
		}
		b.WriteString(detailStyle.Render(m.viewport.View()))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}

	help := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}

func reverse(nodes []types.Node) []types.Node {
	out := make([]types.Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}
