package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/pmux/pkg/manager"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ManagerListModel - Interactive package manager selection
// =============================================================================

// ManagerListModel is the bubbletea model offered when detection finds nothing.
type ManagerListModel struct {
	Managers []manager.Descriptor
	Cursor   int
	Selected *manager.Descriptor
}

// NewManagerListModel creates a picker over the known managers.
func NewManagerListModel(managers []manager.Descriptor) ManagerListModel {
	return ManagerListModel{Managers: managers}
}

func (m ManagerListModel) Init() tea.Cmd {
	return nil
}

func (m ManagerListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Managers)-1 {
			m.Cursor++
		}
	case "enter":
		if len(m.Managers) == 0 {
			return m, tea.Quit
		}
		d := m.Managers[m.Cursor].Clone()
		m.Selected = &d
		return m, tea.Quit
	}
	return m, nil
}

func (m ManagerListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Package Manager"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	for i, d := range m.Managers {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-14s %s", cursor, d.String(), listDimStyle.Render(strings.Join(d.DetectionFiles(), ", ")))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// pickManager asks the user to choose a package manager. It reports false
// when the picker was dismissed.
func pickManager() (manager.Descriptor, bool, error) {
	p := tea.NewProgram(NewManagerListModel(manager.Known()), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return manager.Descriptor{}, false, err
	}
	m, ok := final.(ManagerListModel)
	if !ok || m.Selected == nil {
		return manager.Descriptor{}, false, nil
	}
	return *m.Selected, true, nil
}
