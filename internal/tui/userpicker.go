package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/workcal/internal/engine"
)

const userPickerVisible = 15

type userPickerModel struct {
	users    []engine.User
	filtered []int // indices into users
	selected map[int]bool
	cursor   int
	filter   textinput.Model
	done     bool
	canceled bool
}

func newUserPicker(users []engine.User, preselected []string) userPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Filter employees..."
	ti.Focus()

	filtered := make([]int, len(users))
	selected := make(map[int]bool)
	for i, u := range users {
		filtered[i] = i
		for _, email := range preselected {
			if u.Email == email {
				selected[i] = true
			}
		}
	}

	return userPickerModel{
		users:    users,
		filtered: filtered,
		selected: selected,
		filter:   ti,
	}
}

func (m userPickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m userPickerModel) Update(msg tea.Msg) (userPickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			return m, nil
		case "enter":
			if len(m.selected) > 0 {
				m.done = true
			}
			return m, nil
		case " ":
			if len(m.filtered) > 0 {
				idx := m.filtered[m.cursor]
				if m.selected[idx] {
					delete(m.selected, idx)
				} else {
					m.selected[idx] = true
				}
			}
			return m, nil
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prevFilter := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)

	if m.filter.Value() != prevFilter {
		m.applyFilter()
	}

	return m, cmd
}

// applyFilter matches the same way as the directory search: a
// case-insensitive substring of the name.
func (m *userPickerModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, u := range m.users {
		if query == "" || strings.Contains(strings.ToLower(u.Name), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m userPickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Select Employees"))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  No employees match filter"))
		b.WriteString("\n")
	} else {
		start := 0
		if m.cursor >= userPickerVisible {
			start = m.cursor - userPickerVisible + 1
		}
		end := min(start+userPickerVisible, len(m.filtered))

		for vi := start; vi < end; vi++ {
			idx := m.filtered[vi]
			user := m.users[idx]

			cursor := "  "
			if vi == m.cursor {
				cursor = "> "
			}

			check := "[ ]"
			if m.selected[idx] {
				check = "[x]"
			}

			email := dimStyle.Render(" " + user.Email)
			prefix := fmt.Sprintf("%s%s ", cursor, check)
			if vi == m.cursor {
				prefix = highlightStyle.Render(prefix)
			}
			b.WriteString(prefix + swatch(user.Color) + " " + user.Name + email)
			b.WriteString("\n")
		}
	}

	count := len(m.selected)
	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"\n%d selected — Space: toggle — Enter: confirm — Esc: cancel", count)))

	return b.String()
}

// Emails returns the selected users' emails in directory order.
func (m userPickerModel) Emails() []string {
	var emails []string
	for i, u := range m.users {
		if m.selected[i] {
			emails = append(emails, u.Email)
		}
	}
	return emails
}
