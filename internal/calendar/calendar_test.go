package calendar

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//workcal//test//EN
BEGIN:VEVENT
UID:office-1
DTSTAMP:20240301T000000Z
DTSTART:20240304T080000Z
DTEND:20240304T160000Z
SUMMARY:At the office
CATEGORIES:Office
END:VEVENT
BEGIN:VEVENT
UID:holiday-1
DTSTAMP:20240301T000000Z
DTSTART;VALUE=DATE:20240306
DTEND;VALUE=DATE:20240307
SUMMARY:Day off
CATEGORIES:holiday
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTAMP:20240301T000000Z
DTSTART:20240301T090000Z
DTEND:20240301T091500Z
RRULE:FREQ=DAILY;COUNT=10
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:outside
DTSTAMP:20240301T000000Z
DTSTART:20240401T080000Z
DTEND:20240401T160000Z
SUMMARY:Next month
END:VEVENT
END:VCALENDAR
`

func writeFeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anne.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(feed, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestICSSourceFetchEvents(t *testing.T) {
	src := NewICSSource(writeFeed(t), engine.NewPalette(), engine.CategoryRemote, time.UTC, nil)

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	events, err := src.FetchEvents(context.Background(), "anne@example.com", start, start.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}

	byID := make(map[string]engine.Event)
	var standups int
	for _, e := range events {
		byID[e.ID] = e
		if strings.HasPrefix(e.ID, "standup/") {
			standups++
		}
		if e.OwnerEmail != "anne@example.com" {
			t.Errorf("event %s not stamped with owner", e.ID)
		}
	}

	office, ok := byID["office-1"]
	if !ok || office.CategoryID != engine.CategoryOffice || office.Title != "At the office" {
		t.Errorf("office event = %+v", office)
	}
	holiday, ok := byID["holiday-1"]
	if !ok || !holiday.AllDay || holiday.CategoryID != engine.CategoryHoliday {
		t.Errorf("holiday event = %+v", holiday)
	}
	if _, ok := byID["outside"]; ok {
		t.Error("event outside the window should be excluded")
	}

	// 4, 5 and 6 March fall in the window.
	if standups != 3 {
		t.Errorf("expected 3 standup occurrences, got %d", standups)
	}
	if e, ok := byID["standup/20240305T090000Z"]; !ok || e.CategoryID != engine.CategoryRemote {
		t.Errorf("uncategorized occurrence should use the default category: %+v", e)
	}
}

const lastDayFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//workcal//test//EN
BEGIN:VEVENT
UID:thursday
DTSTAMP:20240301T000000Z
DTSTART:20240307T090000Z
DTEND:20240307T170000Z
SUMMARY:Office
CATEGORIES:Office
END:VEVENT
BEGIN:VEVENT
UID:friday
DTSTAMP:20240301T000000Z
DTSTART:20240308T000000Z
DTEND:20240308T080000Z
SUMMARY:Early shift
END:VEVENT
END:VCALENDAR
`

func TestICSSourceIncludesLastDayOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anne.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(lastDayFeed, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewICSSource(path, engine.NewPalette(), engine.CategoryOffice, time.UTC, nil)

	start, err := engine.ParseDate("2024-03-01", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	end, err := engine.ParseDate("2024-03-07", time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	events, err := src.FetchEvents(context.Background(), "anne@example.com", start, end)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "thursday" {
		t.Fatalf("expected only the event on 7 March, got %+v", events)
	}

	cats := func() []engine.Category { return engine.DefaultCategories }
	rows, err := engine.NewReportBuilder(src, noTasks{}, cats, nil, time.UTC, nil).
		Build(context.Background(), []engine.User{{Email: "anne@example.com"}}, start, end)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rows) != 1 || len(rows[0].Events) != 1 {
		t.Fatalf("report should include the event on its last day, got %+v", rows)
	}
	if rows[0].Events[0].Hours != "8.00" {
		t.Errorf("hours = %s", rows[0].Events[0].Hours)
	}
}

type noTasks struct{}

func (noTasks) FetchTasks(context.Context) ([]engine.Task, error) { return nil, nil }

func (noTasks) FetchTasksForUser(context.Context, string) ([]engine.Task, error) {
	return nil, nil
}

func TestICSSourceMissingFile(t *testing.T) {
	src := NewICSSource(filepath.Join(t.TempDir(), "nope.ics"), nil, engine.CategoryOffice, time.UTC, nil)
	if _, err := src.FetchEvents(context.Background(), "anne@example.com", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected an error for a missing feed")
	}
}

type stubFetcher string

func (s stubFetcher) FetchEvents(_ context.Context, email string, _, _ time.Time) ([]engine.Event, error) {
	return []engine.Event{{ID: string(s), OwnerEmail: email}}, nil
}

func TestMuxRoutesByEmail(t *testing.T) {
	m := NewMux(stubFetcher("teamup"))
	m.Register("Anne@Example.com", stubFetcher("ics"))
	ctx := context.Background()

	got, err := m.FetchEvents(ctx, "anne@example.com", time.Time{}, time.Time{})
	if err != nil || got[0].ID != "ics" {
		t.Errorf("anne should route to her feed, got %v, %v", got, err)
	}
	got, err = m.FetchEvents(ctx, "bo@example.com", time.Time{}, time.Time{})
	if err != nil || got[0].ID != "teamup" {
		t.Errorf("bo should fall back, got %v, %v", got, err)
	}

	if _, err := NewMux(nil).Get("bo@example.com"); err == nil {
		t.Error("expected an error without a fallback")
	}
}
