package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
	"github.com/dikkadev/pkgmark/pkg/query"
	"github.com/dikkadev/pkgmark/pkg/storage"
)

type PackageItem struct {
	entry marks.Entry
}

func (i PackageItem) Title() string {
	return badge(i.entry.State) + " " + i.entry.Package.String()
}

func (i PackageItem) Description() string {
	desc := i.entry.Package.Summary()
	prefix := fmt.Sprintf("%s | ", i.entry.State)
	maxLen := 100 - len(prefix)
	if len(desc) > maxLen {
		desc = desc[:maxLen-3] + "..."
	}
	return prefix + desc
}

func (i PackageItem) FilterValue() string {
	return i.entry.Package.Name()
}

// Options configures the browser
type Options struct {
	// QuickMark makes space toggle the most likely action
	QuickMark bool
	// Confirm asks before committing marks that touch other packages
	Confirm bool
}

// changedMsg tells the model that the engine state changed
type changedMsg struct{}

type model struct {
	engine  *marks.Engine
	filter  *query.Filter
	filters []storage.Filter
	active  int
	opts    Options

	list    list.Model
	input   textinput.Model
	editing bool

	pending  *marks.Proposal
	status   string
	err      error
	quitting bool
}

func newModel(engine *marks.Engine, filters []storage.Filter, opts Options) model {
	if len(filters) == 0 {
		filters = storage.DefaultFilters()
	}

	input := textinput.New()
	input.Prompt = "query: "
	input.Placeholder = "e.g. installed AND version >= 2"

	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Packages"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(true)
	l.SetShowTitle(true)
	l.KeyMap.Quit.SetEnabled(false)

	m := model{
		engine:  engine,
		filter:  query.NewFilter(),
		filters: filters,
		opts:    opts,
		list:    l,
		input:   input,
	}
	m.selectFilter(0)
	return m
}

func (m *model) selectFilter(i int) {
	m.active = i % len(m.filters)
	if err := m.filter.Set(m.filters[m.active].Query); err != nil {
		m.err = err
	}
	m.input.SetValue(m.filter.Text())
	m.reload()
}

// reload rebuilds the list from the engine, keeping the cursor on the same package
func (m *model) reload() {
	var current string
	if item, ok := m.list.SelectedItem().(PackageItem); ok {
		current = item.entry.Package.CanonicalName()
	}

	var items []list.Item
	cursor := 0
	for _, e := range m.engine.Entries() {
		if !m.filter.Match(e.Package) {
			continue
		}
		if e.Package.CanonicalName() == current {
			cursor = len(items)
		}
		items = append(items, PackageItem{entry: e})
	}

	m.list.SetItems(items)
	m.list.Select(cursor)
}

func (m *model) selected() *catalog.Package {
	if item, ok := m.list.SelectedItem().(PackageItem); ok {
		return item.entry.Package
	}
	return nil
}

func (m *model) apply(action marks.Action) {
	p := m.selected()
	if p == nil {
		return
	}

	prop, err := m.engine.Propose(action, p.CanonicalName())
	if err != nil {
		m.setError(err)
		return
	}
	if m.opts.Confirm && !prop.Empty() {
		m.pending = prop
		return
	}
	m.commit(prop)
}

func (m *model) commit(prop *marks.Proposal) {
	m.pending = nil
	if err := m.engine.Commit(prop); err != nil {
		m.setError(err)
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("%s %s", prop.Action, prop.Target)
	m.reload()
}

func (m *model) setError(err error) {
	if errors.Is(err, marks.ErrIllegalTransition) {
		m.status = "not possible: " + err.Error()
		m.err = nil
		return
	}
	m.err = err
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.reload()
		return m, nil
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-6)
		return m, nil
	case tea.KeyMsg:
		if m.pending != nil {
			return m.updateConfirm(msg)
		}
		if m.editing {
			return m.updateQuery(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.editing = true
			m.input.Focus()
			return m, textinput.Blink
		case "tab":
			m.selectFilter(m.active + 1)
			return m, nil
		case "i":
			m.apply(marks.ActionInstall)
			return m, nil
		case "r":
			m.apply(marks.ActionReinstall)
			return m, nil
		case "u":
			m.apply(marks.ActionUpdate)
			return m, nil
		case "d":
			m.apply(marks.ActionRemove)
			return m, nil
		case "x":
			m.apply(marks.ActionUnmark)
			return m, nil
		case " ":
			m.quickMark()
			return m, nil
		case "U":
			m.engine.UnmarkAll()
			m.status = "all marks cleared"
			m.reload()
			return m, nil
		case "ctrl+n":
			m.list.CursorDown()
			return m, nil
		case "ctrl+p":
			m.list.CursorUp()
			return m, nil
		case "pgdown", "ctrl+d":
			m.list.NextPage()
			return m, nil
		case "pgup", "ctrl+u":
			m.list.PrevPage()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) quickMark() {
	if !m.opts.QuickMark {
		m.status = "quick mark is disabled"
		return
	}
	p := m.selected()
	if p == nil {
		return
	}

	action, ok, err := m.engine.LikelyAction(p.CanonicalName())
	if err != nil {
		m.setError(err)
		return
	}
	if !ok {
		m.status = "no quick action for " + p.String()
		return
	}
	m.apply(action)
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.commit(m.pending)
	case "n", "N", "esc", "q":
		m.pending = nil
		m.status = "changes declined"
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateQuery(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editing = false
		m.input.Blur()
		if err := m.filter.Set(m.input.Value()); err != nil {
			m.err = err
			m.input.SetValue(m.filter.Text())
			return m, nil
		}
		m.err = nil
		m.reload()
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		m.input.SetValue(m.filter.Text())
		return m, nil
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) filterBar() string {
	var parts []string
	for i, f := range m.filters {
		if i == m.active {
			parts = append(parts, activeStyle.Render(f.Name))
		} else {
			parts = append(parts, filterStyle.Render(f.Name))
		}
	}
	return strings.Join(parts, "  ")
}

func proposalView(p *marks.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To %s %s these packages change as well:\n", p.Action, p.Target)
	for _, group := range []struct {
		title string
		list  []*catalog.Package
	}{
		{"To be installed", p.Install},
		{"To be updated", p.Update},
		{"To be removed", p.Remove},
	} {
		if len(group.list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", group.title)
		for _, pkg := range group.list {
			fmt.Fprintf(&b, "  %s\n", pkg)
		}
	}
	b.WriteString("\nApply? [y/N]")
	return confirmStyle.Render(b.String())
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	if m.pending != nil {
		return proposalView(m.pending) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("pkgmark") + "  " + m.filterBar() + "\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.list.View() + "\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(statusStyle.Render(m.engine.Stats().String()) + "\n")
	b.WriteString("\nMark: i/r/u/d • Unmark: x • Quick: space • Clear: U • Query: / • Filter: Tab • Quit: Esc/q\n")
	return b.String()
}

// Run presents the interactive package browser until the user quits
func Run(ctx context.Context, engine *marks.Engine, filters []storage.Filter, opts Options) error {
	m := newModel(engine, filters, opts)

	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	unsubscribe := engine.Subscribe(func() {
		go prog.Send(changedMsg{})
	})
	defer unsubscribe()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run UI: %w", err)
	}
	return nil
}
