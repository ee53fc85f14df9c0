package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/workcal/internal/engine"
)

type viewState int

const (
	pickView viewState = iota
	loadingView
	weekView
	confirmationView
)

// RangeSetter fetches a visible range into the session.
type RangeSetter interface {
	SetRange(ctx context.Context, start, end time.Time, emails []string) error
}

type sessionRange struct {
	session *engine.Session
}

func (r sessionRange) SetRange(ctx context.Context, start, end time.Time, emails []string) error {
	return r.session.OnVisibleRangeChanged(ctx, start, end, emails)
}

type entriesMsg []engine.ViewEntry

type rangeLoadedMsg struct {
	err error
}

type reportMsg struct {
	rows []engine.ReportRow
	err  error
}

type App struct {
	state   viewState
	picker  userPickerModel
	spinner spinner.Model
	errMsg  string
	notice  string

	session *engine.Session
	ranges  RangeSetter
	emails  []string
	week    time.Time
	entries []engine.ViewEntry
	cursor  int
	detail  bool
	names   map[string]string

	ctx     context.Context
	updates chan []engine.ViewEntry
}

// NewApp builds the week calendar. With no preselected emails it starts in
// the employee picker.
func NewApp(ctx context.Context, session *engine.Session, ranges RangeSetter, emails []string, week time.Time) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot

	if ranges == nil {
		ranges = sessionRange{session: session}
	}

	names := make(map[string]string)
	for _, u := range session.Users() {
		names[u.Email] = u.Name
	}

	a := &App{
		state:   pickView,
		picker:  newUserPicker(session.Users(), emails),
		spinner: s,
		session: session,
		ranges:  ranges,
		emails:  emails,
		week:    weekStart(week, session.Location()),
		names:   names,
		ctx:     ctx,
		updates: make(chan []engine.ViewEntry, 1),
	}
	if len(emails) > 0 {
		a.state = loadingView
	}
	return a
}

func (a *App) Init() tea.Cmd {
	go a.session.Watch(a.ctx, func(entries []engine.ViewEntry) {
		// Keep only the latest derivation if the UI is behind.
		select {
		case <-a.updates:
		default:
		}
		select {
		case a.updates <- entries:
		case <-a.ctx.Done():
		}
	})

	cmds := []tea.Cmd{a.spinner.Tick, a.waitForEntries()}
	if a.state == loadingView {
		cmds = append(cmds, a.loadWeek())
	} else {
		cmds = append(cmds, a.picker.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) waitForEntries() tea.Cmd {
	return func() tea.Msg {
		select {
		case entries := <-a.updates:
			return entriesMsg(entries)
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) loadWeek() tea.Cmd {
	start, end := a.week, a.week.AddDate(0, 0, 7)
	emails := append([]string(nil), a.emails...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
		defer cancel()
		return rangeLoadedMsg{err: a.ranges.SetRange(ctx, start, end, emails)}
	}
}

func (a *App) runReport() tea.Cmd {
	start, end := a.week, a.week.AddDate(0, 0, 6)
	emails := append([]string(nil), a.emails...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
		defer cancel()
		rows, err := a.session.RequestReport(ctx, emails, start, end)
		return reportMsg{rows: rows, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	case entriesMsg:
		a.setEntries(msg)
		return a, a.waitForEntries()
	case rangeLoadedMsg:
		a.state = weekView
		a.errMsg = ""
		if msg.err != nil {
			a.errMsg = msg.err.Error()
		}
		return a, nil
	case reportMsg:
		return a.handleReport(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	switch a.state {
	case pickView:
		return a.updatePicker(msg)
	case weekView:
		return a.updateWeek(msg)
	case confirmationView:
		if _, ok := msg.(tea.KeyMsg); ok {
			a.state = weekView
		}
	}
	return a, nil
}

func (a *App) setEntries(all []engine.ViewEntry) {
	loc := a.session.Location()
	from := engine.DateOf(a.week, loc)
	to := engine.DateOf(a.week.AddDate(0, 0, 6), loc)

	a.entries = nil
	for _, e := range all {
		if e.StartDate.Within(from, to) {
			a.entries = append(a.entries, e)
		}
	}
	if a.cursor >= len(a.entries) {
		a.cursor = max(0, len(a.entries)-1)
	}
}

func (a *App) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.picker, cmd = a.picker.Update(msg)

	if a.picker.canceled {
		if len(a.emails) == 0 {
			return a, tea.Quit
		}
		a.picker.canceled = false
		a.state = weekView
		return a, nil
	}
	if a.picker.done {
		a.picker.done = false
		for _, email := range a.emails {
			if !slices.Contains(a.picker.Emails(), email) {
				a.session.Events.RemoveUser(email)
			}
		}
		a.emails = a.picker.Emails()
		a.state = loadingView
		return a, tea.Batch(a.spinner.Tick, a.loadWeek())
	}
	return a, cmd
}

func (a *App) updateWeek(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	switch keyMsg.String() {
	case "q":
		return a, tea.Quit
	case "left", "h":
		return a.moveWeek(-7)
	case "right", "l":
		return a.moveWeek(7)
	case "t":
		a.week = weekStart(time.Now(), a.session.Location())
		return a.moveWeek(0)
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.entries)-1 {
			a.cursor++
		}
	case "enter":
		a.detail = !a.detail
	case "u":
		a.picker = newUserPicker(a.session.Users(), a.emails)
		a.state = pickView
		return a, a.picker.Init()
	case "r":
		a.state = loadingView
		return a, tea.Batch(a.spinner.Tick, a.runReport())
	}
	return a, nil
}

func (a *App) moveWeek(days int) (tea.Model, tea.Cmd) {
	a.week = a.week.AddDate(0, 0, days)
	a.cursor = 0
	a.detail = false
	a.setEntries(a.session.Entries())
	a.state = loadingView
	return a, tea.Batch(a.spinner.Tick, a.loadWeek())
}

func (a *App) handleReport(msg reportMsg) (tea.Model, tea.Cmd) {
	a.state = confirmationView
	a.errMsg = ""
	a.notice = ""
	if msg.err != nil {
		a.errMsg = msg.err.Error()
		return a, nil
	}

	events, tasks := 0, 0
	for _, r := range msg.rows {
		events += len(r.Events)
		tasks += len(r.Tasks)
	}
	a.notice = fmt.Sprintf("Report exported: %d employees, %d events, %d tasks", len(msg.rows), events, tasks)
	return a, nil
}

func (a *App) View() string {
	switch a.state {
	case pickView:
		return a.picker.View()
	case loadingView:
		return a.spinner.View() + " Loading calendar..."
	case weekView:
		return a.weekView()
	case confirmationView:
		if a.errMsg != "" {
			return errorStyle.Render("Error: ") + a.errMsg + "\n\n" + helpStyle.Render("Press any key to continue")
		}
		return successStyle.Render(a.notice) + "\n\n" + helpStyle.Render("Press any key to continue")
	}
	return ""
}

func (a *App) weekView() string {
	var b strings.Builder
	loc := a.session.Location()

	last := a.week.AddDate(0, 0, 6)
	b.WriteString(titleStyle.Render(fmt.Sprintf("workcal — week of %s", engine.LongDate(a.week, loc))))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s – %s · %d employees", a.week.Format("Mon 2 Jan"), last.Format("Mon 2 Jan"), len(a.emails))))
	b.WriteString("\n")

	if a.errMsg != "" {
		b.WriteString(warningStyle.Render("Some calendars could not be loaded: " + a.errMsg))
		b.WriteString("\n")
	}

	for d := 0; d < 7; d++ {
		day := a.week.AddDate(0, 0, d)
		date := engine.DateOf(day, loc)
		b.WriteString(dayStyle.Render(day.Format("Monday 2 Jan")))
		b.WriteString("\n")

		found := false
		for i, e := range a.entries {
			if e.StartDate != date {
				continue
			}
			found = true
			cursor := "  "
			if i == a.cursor {
				cursor = highlightStyle.Render("> ")
			}
			b.WriteString(cursor + a.entryLine(e, loc))
			b.WriteString("\n")
		}
		if !found {
			b.WriteString(dimStyle.Render("  —"))
			b.WriteString("\n")
		}
	}

	if a.detail && a.cursor < len(a.entries) {
		if tip, ok := a.session.OnHoverIntent(a.entries[a.cursor].ID); ok {
			b.WriteString("\n")
			b.WriteString(boxStyle.Render(tooltipView(tip)))
			b.WriteString("\n")
		}
	}

	b.WriteString(helpStyle.Render("←/→: week • t: today • ↑/↓: select • Enter: details • u: employees • r: report • q: quit"))
	return b.String()
}

func (a *App) entryLine(e engine.ViewEntry, loc *time.Location) string {
	name := a.names[e.OwnerEmail]
	if name == "" {
		name = e.OwnerEmail
	}

	when := "all day"
	if !e.AllDay {
		when = fmt.Sprintf("%s–%s", e.Start.In(loc).Format("15:04"), e.End.In(loc).Format("15:04"))
	}

	line := entryStyle(e.BackgroundColor).Render(e.CategoryName) + " " + name + " " + dimStyle.Render(when)
	if e.HasTasks() {
		line += " " + dimStyle.Render(fmt.Sprintf("· %d tasks", len(e.Tasks)))
	}
	return line
}

func tooltipView(tip engine.Tooltip) string {
	var b strings.Builder
	b.WriteString(highlightStyle.Render(tip.Title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s · %s · %s\n", tip.Email, tip.CategoryName, tip.Start))
	if len(tip.Tasks) == 0 {
		b.WriteString(dimStyle.Render("No logged tasks"))
		return b.String()
	}
	for _, t := range tip.Tasks {
		b.WriteString(fmt.Sprintf("• %s %dh %dm\n", t.Title, t.Hours, t.Minutes))
	}
	return strings.TrimRight(b.String(), "\n")
}

// weekStart returns midnight of the Monday on or before t in loc.
func weekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -offset)
}
