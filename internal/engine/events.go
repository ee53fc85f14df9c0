package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventStore holds the calendar events fetched so far, keyed by user email.
// Fetches run without holding the lock; only the in-memory merge is
// serialized, and it always merges into the latest state.
type EventStore struct {
	fetcher    EventFetcher
	categories CategoryFetcher
	auth       Authenticator
	logger     *slog.Logger

	mu      sync.RWMutex
	users   map[string][]Event
	subcals []Category
	changes notifier
}

func NewEventStore(fetcher EventFetcher, categories CategoryFetcher, auth Authenticator, logger *slog.Logger) *EventStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if auth == nil {
		auth = alwaysAuthenticated{}
	}
	return &EventStore{
		fetcher:    fetcher,
		categories: categories,
		auth:       auth,
		logger:     logger,
		users:      make(map[string][]Event),
	}
}

// FetchAndMerge fetches email's events in [start, end] and merges them into
// the collection already held for email. On failure the held events are left
// untouched and a *FetchError is returned.
func (s *EventStore) FetchAndMerge(ctx context.Context, email string, start, end time.Time) error {
	if email == "" {
		s.logger.Debug("no email provided to fetch user events")
		return &ValidationError{Message: "no email provided to fetch user events"}
	}
	if !s.auth.IsAuthenticated() {
		s.logger.Warn("refusing event fetch before authentication", "email", email)
		return ErrNotAuthenticated
	}

	fetched, err := s.fetcher.FetchEvents(ctx, email, start, end)
	if err != nil {
		s.logger.Error("fetching user calendar failed", "email", email, "error", err)
		return &FetchError{Source: "events", Email: email, Err: err}
	}

	for i := range fetched {
		if fetched[i].OwnerEmail == "" {
			fetched[i].OwnerEmail = email
		}
	}

	s.mu.Lock()
	before := len(s.users[email])
	merged := mergeEvents(s.users[email], fetched)
	s.users[email] = merged
	s.mu.Unlock()

	s.logger.Debug("user events merged", "email", email, "fetched", len(fetched), "before", before, "after", len(merged))
	s.changes.notify()
	return nil
}

// mergeEvents concatenates existing and fetched and keeps the first event for
// each ID, so held events win over freshly fetched duplicates.
func mergeEvents(existing, fetched []Event) []Event {
	seen := make(map[string]struct{}, len(existing)+len(fetched))
	merged := make([]Event, 0, len(existing)+len(fetched))
	for _, list := range [][]Event{existing, fetched} {
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

// RemoveUser drops everything held for email. Removing an absent user is a no-op.
func (s *EventStore) RemoveUser(email string) {
	s.mu.Lock()
	_, ok := s.users[email]
	delete(s.users, email)
	s.mu.Unlock()

	if ok {
		s.changes.notify()
	}
}

func (s *EventStore) UserEvents(email string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Event(nil), s.users[email]...)
}

// Snapshot returns a deep copy of the per-user collections.
func (s *EventStore) Snapshot() map[string][]Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Event, len(s.users))
	for email, events := range s.users {
		out[email] = append([]Event(nil), events...)
	}
	return out
}

// LoadCategories fetches the known subcalendar table. It is meant to run once
// per session.
func (s *EventStore) LoadCategories(ctx context.Context) error {
	if s.categories == nil {
		return nil
	}
	cats, err := s.categories.FetchCategories(ctx)
	if err != nil {
		s.logger.Error("fetching subcalendars failed", "error", err)
		return &FetchError{Source: "subcalendars", Err: err}
	}

	s.mu.Lock()
	s.subcals = append([]Category(nil), cats...)
	s.mu.Unlock()

	s.logger.Debug("subcalendars loaded", "count", len(cats))
	s.changes.notify()
	return nil
}

func (s *EventStore) Categories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Category(nil), s.subcals...)
}

// Subscribe returns a channel that receives a signal after every change. The
// returned function unsubscribes and closes the channel.
func (s *EventStore) Subscribe() (<-chan struct{}, func()) {
	return s.changes.subscribe()
}
