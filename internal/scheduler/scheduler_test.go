package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

type memEvents struct {
	mu     sync.Mutex
	events map[string][]engine.Event
}

func (m *memEvents) FetchEvents(_ context.Context, email string, _, _ time.Time) ([]engine.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Event(nil), m.events[email]...), nil
}

func (m *memEvents) add(email string, e engine.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[email] = append(m.events[email], e)
}

type memTasks struct {
	mu    sync.Mutex
	calls int
}

func (m *memTasks) FetchTasks(context.Context) ([]engine.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil, nil
}

func (m *memTasks) FetchTasksForUser(context.Context, string) ([]engine.Task, error) {
	return nil, nil
}

type staticCategories []engine.Category

func (s staticCategories) FetchCategories(context.Context) ([]engine.Category, error) {
	return s, nil
}

func day(d int) engine.Event {
	start := time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
	return engine.Event{ID: "e" + start.Format("02"), CategoryID: engine.CategoryOffice, Start: start, End: start.Add(8 * time.Hour)}
}

func newTestScheduler(t *testing.T, events *memEvents, tasks *memTasks) (*Scheduler, *[]string, *int) {
	t.Helper()
	session := engine.NewSession(engine.SessionConfig{
		Events:     events,
		Tasks:      tasks,
		Categories: staticCategories(engine.DefaultCategories),
		Location:   time.UTC,
	})
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	invalidated := 0
	var sent []string
	s := New(session, "@every 1h",
		WithNotifications(true),
		WithInvalidate(func() { invalidated++ }),
	)
	s.notifier = func(_, msg string) error {
		sent = append(sent, msg)
		return nil
	}
	return s, &sent, &invalidated
}

func TestRefreshNowRefetchesTrackedRange(t *testing.T) {
	events := &memEvents{events: map[string][]engine.Event{"anne@example.com": {day(4)}}}
	tasks := &memTasks{}
	s, sent, invalidated := newTestScheduler(t, events, tasks)
	ctx := context.Background()

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if err := s.SetRange(ctx, start, start.AddDate(0, 0, 7), []string{"anne@example.com"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RefreshNow(ctx); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	if len(*sent) != 0 {
		t.Errorf("first refresh should not notify, got %v", *sent)
	}

	events.add("anne@example.com", day(5))
	if err := s.RefreshNow(ctx); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	if got := len(s.session.Entries()); got != 2 {
		t.Errorf("expected the new event to be merged, got %d entries", got)
	}
	if len(*sent) != 1 || (*sent)[0] != "2 calendar entries, 0 with logged tasks" {
		t.Errorf("notifications = %v", *sent)
	}
	if *invalidated != 2 {
		t.Errorf("cache should be invalidated on every refresh, got %d", *invalidated)
	}
	// Start plus two refreshes.
	if tasks.calls != 3 {
		t.Errorf("expected 3 task fetches, got %d", tasks.calls)
	}
}

func TestRemoveUserStopsTracking(t *testing.T) {
	events := &memEvents{events: map[string][]engine.Event{
		"anne@example.com": {day(4)},
		"bo@example.com":   {day(5)},
	}}
	s, _, _ := newTestScheduler(t, events, &memTasks{})
	ctx := context.Background()

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if err := s.SetRange(ctx, start, start.AddDate(0, 0, 7), []string{"anne@example.com", "bo@example.com"}); err != nil {
		t.Fatal(err)
	}
	s.RemoveUser("bo@example.com")
	if err := s.RefreshNow(ctx); err != nil {
		t.Fatal(err)
	}

	if got := s.session.Events.UserEvents("bo@example.com"); len(got) != 0 {
		t.Errorf("removed user should not be re-fetched, got %d events", len(got))
	}
}

func TestValidateSpec(t *testing.T) {
	if err := ValidateSpec("*/15 * * * *"); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
	if err := ValidateSpec(""); err != nil {
		t.Errorf("empty schedule disables refresh: %v", err)
	}
	if err := ValidateSpec("every minute"); err == nil {
		t.Error("expected an error for a bad schedule")
	}
}
