package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// TaskStore holds every task visible to the session. A refresh replaces the
// whole collection; tasks are not merged.
type TaskStore struct {
	fetcher TaskFetcher
	logger  *slog.Logger

	mu      sync.RWMutex
	tasks   []Task
	changes notifier
}

func NewTaskStore(fetcher TaskFetcher, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TaskStore{fetcher: fetcher, logger: logger}
}

func (s *TaskStore) Refresh(ctx context.Context) error {
	tasks, err := s.fetcher.FetchTasks(ctx)
	if err != nil {
		s.logger.Error("fetching tasks failed", "error", err)
		return &FetchError{Source: "tasks", Err: err}
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()

	s.logger.Debug("tasks refreshed", "count", len(tasks))
	s.changes.notify()
	return nil
}

func (s *TaskStore) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Task(nil), s.tasks...)
}

// FetchTasksForUser fetches email's tasks without touching the store.
func (s *TaskStore) FetchTasksForUser(ctx context.Context, email string) ([]Task, error) {
	tasks, err := s.fetcher.FetchTasksForUser(ctx, email)
	if err != nil {
		return nil, &FetchError{Source: "tasks", Email: email, Err: err}
	}
	return tasks, nil
}

func (s *TaskStore) Subscribe() (<-chan struct{}, func()) {
	return s.changes.subscribe()
}
