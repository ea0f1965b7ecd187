package browser

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
	"github.com/dikkadev/pkgmark/pkg/storage"
)

func testEngine(t *testing.T) *marks.Engine {
	t.Helper()

	c, err := catalog.New([]catalog.Spec{
		{CanonicalName: "app", Name: "app", Version: "1.0", Arch: "x64", Summary: "an application", Dependencies: []string{"lib"}},
		{CanonicalName: "lib", Name: "lib", Version: "1.0", Arch: "x64"},
		{CanonicalName: "tool", Name: "tool", Version: "2.0", Arch: "x64", Installed: true},
	}, catalog.WithClock(func() time.Time { return time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("Failed to build catalogue: %v", err)
	}
	return marks.New(c, marks.Options{})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m model, keys ...string) model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func typeText(m model, text string) model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(model)
	}
	return m
}

func mark(t *testing.T, e *marks.Engine, name string) marks.Mark {
	t.Helper()
	s, err := e.State(name)
	if err != nil {
		t.Fatalf("State(%s) error = %v", name, err)
	}
	return s.Mark
}

func TestPackageItem(t *testing.T) {
	e := testEngine(t)
	entries := e.Entries()

	item := PackageItem{entry: entries[0]}
	if !strings.Contains(item.Title(), "app-1.0-x64") {
		t.Errorf("Title() = %v", item.Title())
	}
	if got := item.Description(); got != "NotInstalled | an application" {
		t.Errorf("Description() = %v", got)
	}
	if got := item.FilterValue(); got != "app" {
		t.Errorf("FilterValue() = %v", got)
	}
}

func TestMarkKeys(t *testing.T) {
	e := testEngine(t)
	m := newModel(e, nil, Options{})

	// cursor starts on app
	m = send(m, "i")
	if got := mark(t, e, "app"); got != marks.MarkedForInstallation {
		t.Errorf("app mark = %v, want %v", got, marks.MarkedForInstallation)
	}
	if got := mark(t, e, "lib"); got != marks.MarkedForInstallation {
		t.Errorf("lib mark = %v, want %v", got, marks.MarkedForInstallation)
	}

	m = send(m, "x")
	if got := mark(t, e, "app"); got != marks.Unmarked {
		t.Errorf("app mark after unmark = %v", got)
	}

	// illegal action is reported, not an error
	m = send(m, "d")
	if m.err != nil {
		t.Errorf("unexpected error %v", m.err)
	}
	if !strings.HasPrefix(m.status, "not possible") {
		t.Errorf("status = %q", m.status)
	}
}

func TestConfirmation(t *testing.T) {
	e := testEngine(t)
	m := newModel(e, nil, Options{Confirm: true})

	m = send(m, "i")
	if m.pending == nil {
		t.Fatal("expected pending proposal")
	}
	if view := m.View(); !strings.Contains(view, "To be installed") || !strings.Contains(view, "lib-1.0-x64") {
		t.Errorf("confirmation view missing closure:\n%s", view)
	}
	if got := mark(t, e, "app"); got != marks.Unmarked {
		t.Error("marks changed before confirmation")
	}

	m = send(m, "n")
	if m.pending != nil || mark(t, e, "app") != marks.Unmarked {
		t.Error("declined proposal was applied")
	}

	m = send(m, "i", "y")
	if m.pending != nil {
		t.Error("proposal still pending after confirmation")
	}
	if mark(t, e, "app") != marks.MarkedForInstallation || mark(t, e, "lib") != marks.MarkedForInstallation {
		t.Error("confirmed proposal was not applied")
	}
}

func TestQueryInput(t *testing.T) {
	e := testEngine(t)
	m := newModel(e, nil, Options{})

	m = send(m, "/")
	if !m.editing {
		t.Fatal("expected query editing")
	}
	m = typeText(m, "installed")
	m = send(m, "enter")

	if m.filter.Text() != "installed" {
		t.Errorf("filter = %q", m.filter.Text())
	}
	if len(m.list.Items()) != 1 {
		t.Errorf("got %d items, want 1", len(m.list.Items()))
	}

	// a broken query keeps the previous filter
	m = send(m, "/")
	m = typeText(m, " AND (")
	m = send(m, "enter")
	if m.err == nil {
		t.Error("expected parse error")
	}
	if m.filter.Text() != "installed" || len(m.list.Items()) != 1 {
		t.Errorf("previous filter not kept: %q, %d items", m.filter.Text(), len(m.list.Items()))
	}
}

func TestFilterCycle(t *testing.T) {
	e := testEngine(t)
	filters := []storage.Filter{
		{Name: "All", Query: ""},
		{Name: "Installed", Query: "installed"},
	}
	m := newModel(e, filters, Options{})

	if len(m.list.Items()) != 3 {
		t.Errorf("got %d items, want 3", len(m.list.Items()))
	}
	m = send(m, "tab")
	if m.active != 1 || len(m.list.Items()) != 1 {
		t.Errorf("active = %d, items = %d", m.active, len(m.list.Items()))
	}
	m = send(m, "tab")
	if m.active != 0 {
		t.Errorf("filters did not wrap, active = %d", m.active)
	}
}

func TestQuickMarkKey(t *testing.T) {
	e := testEngine(t)

	m := newModel(e, nil, Options{})
	m = send(m, " ")
	if mark(t, e, "app") != marks.Unmarked {
		t.Error("space marked although quick mark is disabled")
	}

	m = newModel(e, nil, Options{QuickMark: true})
	m = send(m, " ")
	if mark(t, e, "app") != marks.MarkedForInstallation {
		t.Error("space did not mark app")
	}
	m = send(m, " ")
	if mark(t, e, "app") != marks.Unmarked {
		t.Error("space did not unmark app")
	}

	m = send(m, "i", "U")
	if len(e.Marks()) != 0 {
		t.Errorf("marks left after clearing: %v", e.Marks())
	}
}

func TestQuit(t *testing.T) {
	m := newModel(testEngine(t), nil, Options{})
	next, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if next.(model).View() != "" {
		t.Error("view not empty after quitting")
	}
}

func TestQuickMarkWithConfirmation(t *testing.T) {
	e := testEngine(t)
	m := newModel(e, nil, Options{QuickMark: true, Confirm: true})

	m = send(m, " ")
	if m.pending == nil || m.pending.Action != marks.ActionInstall {
		t.Fatalf("expected pending install, got %+v", m.pending)
	}
	m = send(m, "y")
	if mark(t, e, "app") != marks.MarkedForInstallation {
		t.Error("confirmed quick mark was not applied")
	}

	m = send(m, " ")
	if m.pending == nil || m.pending.Action != marks.ActionUnmark {
		t.Fatalf("expected pending unmark, got %+v", m.pending)
	}
	m = send(m, "y")
	if mark(t, e, "app") != marks.Unmarked || mark(t, e, "lib") != marks.Unmarked {
		t.Error("confirmed quick unmark was not applied")
	}

	// tool is installed, nothing to toggle
	m.list.Select(2)
	m = send(m, " ")
	if m.pending != nil {
		t.Error("installed package got a pending proposal")
	}
	if !strings.HasPrefix(m.status, "no quick action") {
		t.Errorf("status = %q", m.status)
	}
}
