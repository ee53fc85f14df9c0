package engine_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

var errBoom = errors.New("boom")

type fakeEvents struct {
	mu     sync.Mutex
	byUser map[string][]engine.Event
	fail   map[string]error
	calls  atomic.Int32
}

func (f *fakeEvents) FetchEvents(_ context.Context, email string, _, _ time.Time) ([]engine.Event, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[email]; err != nil {
		return nil, err
	}
	return append([]engine.Event(nil), f.byUser[email]...), nil
}

func (f *fakeEvents) set(email string, events ...engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUser == nil {
		f.byUser = make(map[string][]engine.Event)
	}
	f.byUser[email] = events
}

type fakeTasks struct {
	all    []engine.Task
	byUser map[string][]engine.Task
	fail   map[string]error
	calls  atomic.Int32
}

func (f *fakeTasks) FetchTasks(context.Context) ([]engine.Task, error) {
	f.calls.Add(1)
	if err := f.fail[""]; err != nil {
		return nil, err
	}
	return append([]engine.Task(nil), f.all...), nil
}

func (f *fakeTasks) FetchTasksForUser(_ context.Context, email string) ([]engine.Task, error) {
	f.calls.Add(1)
	if err := f.fail[email]; err != nil {
		return nil, err
	}
	return append([]engine.Task(nil), f.byUser[email]...), nil
}

type fakeCategories []engine.Category

func (f fakeCategories) FetchCategories(context.Context) ([]engine.Category, error) {
	return f, nil
}

type fakeAuth bool

func (f fakeAuth) IsAuthenticated() bool { return bool(f) }

type captureExporter struct {
	calls int
	rows  []engine.ReportRow
}

func (c *captureExporter) Export(_ context.Context, rows []engine.ReportRow) error {
	c.calls++
	c.rows = rows
	return nil
}

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func loggedAt(value string) string {
	return strconv.FormatInt(at(value).UnixMilli(), 10)
}

func event(id string, cat engine.CategoryID, start, end string) engine.Event {
	return engine.Event{ID: id, CategoryID: cat, Title: "Event " + id, Start: at(start), End: at(end)}
}
