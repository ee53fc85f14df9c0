package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultEventTitle = "Event"

// Transformer joins held events with logged tasks into calendar view
// entries, and remembers the hover content of every entry it builds.
type Transformer struct {
	palette *Palette
	loc     *time.Location
	logger  *slog.Logger

	mu       sync.RWMutex
	tooltips map[string]Tooltip
}

func NewTransformer(palette *Palette, loc *time.Location, logger *slog.Logger) *Transformer {
	if palette == nil {
		palette = NewPalette()
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transformer{
		palette:  palette,
		loc:      loc,
		logger:   logger,
		tooltips: make(map[string]Tooltip),
	}
}

// Transform builds one ViewEntry per held event whose category is known.
// Events that are structurally broken are logged as a *ShapeError and left
// out; a nil snapshot yields no entries. A partial calendar renders better
// than none, so neither case returns an error.
func (t *Transformer) Transform(events map[string][]Event, known []Category, tasks []Task) []ViewEntry {
	if events == nil {
		t.logger.Warn("calendar transform skipped", "error", &ShapeError{Source: "events", Detail: "expected events keyed by user email, got nil"})
		return []ViewEntry{}
	}

	allowed := make(map[CategoryID]struct{}, len(known))
	for _, c := range known {
		allowed[c.ID] = struct{}{}
	}

	tasksByDate := t.indexTasks(tasks)

	entries := make([]ViewEntry, 0)
	tooltips := make(map[string]Tooltip)

	for email, list := range events {
		for _, ev := range list {
			if _, ok := allowed[ev.CategoryID]; !ok {
				continue
			}
			if err := validateEvent(ev); err != nil {
				t.logger.Warn("skipping malformed event", "email", email, "event", ev.ID, "error", err)
				continue
			}

			owner := ev.OwnerEmail
			if owner == "" {
				owner = email
			}
			startDate := DateOf(ev.Start, t.loc)

			var summaries []TaskSummary
			for _, task := range tasksByDate[startDate] {
				if !task.AttributedTo(owner) {
					continue
				}
				summaries = append(summaries, TaskSummary{
					Title:      task.Title,
					Hours:      task.Hours,
					Minutes:    task.Minutes,
					LoggedBy:   task.LoggedBy,
					DateLogged: task.DateLogged,
				})
			}

			title := ev.Title
			if title == "" {
				title = defaultEventTitle
			}

			entry := ViewEntry{
				ID:              fmt.Sprintf("%s-%s", ev.ID, startDate),
				Title:           title,
				Start:           ev.Start,
				End:             ev.End,
				AllDay:          ev.AllDay,
				BackgroundColor: t.palette.Color(ev.CategoryID),
				OwnerEmail:      owner,
				CategoryID:      ev.CategoryID,
				CategoryName:    t.palette.Name(ev.CategoryID),
				StartDate:       startDate,
				Tasks:           summaries,
			}
			entries = append(entries, entry)
			tooltips[entry.ID] = t.tooltip(entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].ID < entries[j].ID
	})

	t.mu.Lock()
	t.tooltips = tooltips
	t.mu.Unlock()

	return entries
}

// Hover returns the tooltip recorded for a view entry ID by the last Transform.
func (t *Transformer) Hover(id string) (Tooltip, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tip, ok := t.tooltips[id]
	return tip, ok
}

func (t *Transformer) indexTasks(tasks []Task) map[Date][]Task {
	byDate := make(map[Date][]Task)
	for _, task := range tasks {
		at, err := task.LoggedAt()
		if err != nil {
			t.logger.Debug("task without usable logged date", "task", task.Title, "error", err)
			continue
		}
		d := DateOf(at, t.loc)
		byDate[d] = append(byDate[d], task)
	}
	return byDate
}

func (t *Transformer) tooltip(e ViewEntry) Tooltip {
	var b strings.Builder
	b.WriteString(e.Title)
	for _, task := range e.Tasks {
		fmt.Fprintf(&b, "\n%s %dh %dm", task.Title, task.Hours, task.Minutes)
	}

	return Tooltip{
		Email:        e.OwnerEmail,
		CategoryName: e.CategoryName,
		Start:        LongDate(e.Start, t.loc),
		Title:        e.Title,
		Tasks:        e.Tasks,
		Content:      b.String(),
	}
}

func validateEvent(ev Event) error {
	if ev.Start.IsZero() {
		return &ShapeError{Source: "events", Detail: "missing start date"}
	}
	if !ev.End.IsZero() && ev.End.Before(ev.Start) {
		return &ShapeError{Source: "events", Detail: fmt.Sprintf("end %s before start %s", ev.End.Format(time.RFC3339), ev.Start.Format(time.RFC3339))}
	}
	return nil
}
