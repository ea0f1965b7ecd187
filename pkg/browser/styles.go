package browser

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dikkadev/pkgmark/pkg/catalog"
	"github.com/dikkadev/pkgmark/pkg/marks"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	filterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	installStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	updateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	plainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

var markBadges = map[marks.Mark]string{
	marks.MarkedForInstallation:   "[+]",
	marks.MarkedForReinstallation: "[R]",
	marks.MarkedForUpdate:         "[U]",
	marks.MarkedForRemoval:        "[-]",
}

var statusBadges = map[catalog.Status]string{
	catalog.NotInstalled:       "[ ]",
	catalog.NotInstalledLocked: "[L]",
	catalog.NotInstalledNew:    "[N]",
	catalog.Installed:          "[I]",
	catalog.InstalledUpdatable: "[^]",
	catalog.InstalledLocked:    "[L]",
	catalog.Broken:             "[B]",
}

// badge renders the effective mark of a package
func badge(s marks.State) string {
	if b, ok := markBadges[s.Mark]; ok {
		switch s.Mark {
		case marks.MarkedForRemoval:
			return removeStyle.Render(b)
		case marks.MarkedForUpdate:
			return updateStyle.Render(b)
		default:
			return installStyle.Render(b)
		}
	}
	if b, ok := statusBadges[s.Status]; ok {
		if s.Status == catalog.Broken {
			return errorStyle.Render(b)
		}
		return plainStyle.Render(b)
	}
	return "[?]"
}
