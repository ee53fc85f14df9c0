package engine_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

const bo = "bo@example.com"

func newTransformer() *engine.Transformer {
	return engine.NewTransformer(engine.NewPalette(), time.UTC, nil)
}

func TestTransform_SameSourceIDOnDifferentDays(t *testing.T) {
	events := map[string][]engine.Event{
		anne: {
			{ID: "42", CategoryID: engine.CategoryOffice, Start: at("2024-01-01T09:00"), End: at("2024-01-01T17:00"), OwnerEmail: anne},
		},
		bo: {
			{ID: "42", CategoryID: engine.CategoryOffice, Start: at("2024-01-02T09:00"), End: at("2024-01-02T17:00"), OwnerEmail: bo},
		},
	}

	entries := newTransformer().Transform(events, engine.DefaultCategories, nil)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID == entries[1].ID {
		t.Fatalf("entry ids collide: %s", entries[0].ID)
	}
	if entries[0].ID != "42-2024-01-01" || entries[1].ID != "42-2024-01-02" {
		t.Errorf("unexpected ids %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].Title != "Event" {
		t.Errorf("empty title should fall back to Event, got %q", entries[0].Title)
	}
}

func TestTransform_AttachesMatchingTasks(t *testing.T) {
	events := map[string][]engine.Event{
		anne: {event("1", engine.CategoryRemote, "2024-03-04T08:00", "2024-03-04T16:00")},
	}
	events[anne][0].OwnerEmail = anne

	tasks := []engine.Task{
		{Title: "Fix login", DateLogged: loggedAt("2024-03-04T10:30"), Emails: []string{anne}, Hours: 2, Minutes: 15, LoggedBy: "Anne"},
		{Title: "Review", DateLogged: loggedAt("2024-03-04T14:00"), Emails: []string{bo, anne}, Hours: 1},
		{Title: "Wrong day", DateLogged: loggedAt("2024-03-05T10:00"), Emails: []string{anne}},
		{Title: "Wrong user", DateLogged: loggedAt("2024-03-04T10:00"), Emails: []string{bo}},
		{Title: "Case differs", DateLogged: loggedAt("2024-03-04T10:00"), Emails: []string{"Anne@Example.com"}},
		{Title: "Bad date", DateLogged: "yesterday", Emails: []string{anne}},
	}

	entries := newTransformer().Transform(events, engine.DefaultCategories, tasks)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.HasTasks() || len(e.Tasks) != 2 {
		t.Fatalf("expected 2 attached tasks, got %+v", e.Tasks)
	}
	if e.Tasks[0].Title != "Fix login" || e.Tasks[1].Title != "Review" {
		t.Errorf("unexpected tasks %+v", e.Tasks)
	}
	if e.BackgroundColor != "#7742a9" || e.CategoryName != "Remote" {
		t.Errorf("remote styling wrong: %s %s", e.BackgroundColor, e.CategoryName)
	}
}

func TestTransform_NoTasksIsExplicit(t *testing.T) {
	events := map[string][]engine.Event{
		anne: {event("1", engine.CategoryOffice, "2024-03-04T08:00", "2024-03-04T16:00")},
	}

	entries := newTransformer().Transform(events, engine.DefaultCategories, nil)
	if entries[0].HasTasks() {
		t.Fatal("entry without tasks should report no tasks")
	}

	data, err := json.Marshal(entries[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"taskDetails":null`) {
		t.Errorf("no-tasks marker should serialize as null: %s", data)
	}
}

func TestTransform_DropsUnknownCategoriesAndMalformedEvents(t *testing.T) {
	events := map[string][]engine.Event{
		anne: {
			event("1", engine.CategoryOffice, "2024-03-04T08:00", "2024-03-04T16:00"),
			event("2", 999, "2024-03-04T08:00", "2024-03-04T16:00"),
			event("3", engine.CategorySick, "2024-03-04T16:00", "2024-03-04T08:00"),
			{ID: "4", CategoryID: engine.CategoryOffice},
		},
	}
	known := []engine.Category{{ID: engine.CategoryOffice}, {ID: engine.CategorySick}}

	entries := newTransformer().Transform(events, known, nil)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].ID, "1-") {
		t.Fatalf("expected only event 1, got %+v", entries)
	}
}

func TestTransform_NilSnapshotDegradesToEmpty(t *testing.T) {
	entries := newTransformer().Transform(nil, engine.DefaultCategories, nil)
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", entries)
	}
}

func TestTransform_RecordsHoverContent(t *testing.T) {
	tr := newTransformer()
	events := map[string][]engine.Event{
		anne: {{ID: "9", CategoryID: engine.CategoryOffice, Title: "Office day", Start: at("2024-03-04T08:00"), End: at("2024-03-04T16:00"), OwnerEmail: anne}},
	}
	tasks := []engine.Task{{Title: "Standup", DateLogged: loggedAt("2024-03-04T09:00"), Emails: []string{anne}, Hours: 0, Minutes: 30}}

	entries := tr.Transform(events, engine.DefaultCategories, tasks)

	tip, ok := tr.Hover(entries[0].ID)
	if !ok {
		t.Fatalf("no tooltip recorded for %s", entries[0].ID)
	}
	if tip.Email != anne || tip.CategoryName != "Office" || tip.Start != "4 March 2024" {
		t.Errorf("unexpected tooltip %+v", tip)
	}
	if tip.Content != "Office day\nStandup 0h 30m" {
		t.Errorf("unexpected content %q", tip.Content)
	}

	// A later transform without the event forgets its tooltip.
	tr.Transform(map[string][]engine.Event{}, engine.DefaultCategories, nil)
	if _, ok := tr.Hover(entries[0].ID); ok {
		t.Error("stale tooltip should be dropped")
	}
}
