package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Session ties the stores, the transformer and the report builder together
// and exposes the operations a calendar UI drives.
type Session struct {
	Events  *EventStore
	Tasks   *TaskStore
	View    *Transformer
	Reports *ReportBuilder

	directory UserFetcher
	auth      Authenticator
	exporter  Exporter
	loc       *time.Location
	logger    *slog.Logger

	mu    sync.RWMutex
	users []User
}

type SessionConfig struct {
	Events     EventFetcher
	Tasks      TaskFetcher
	Categories CategoryFetcher
	Users      UserFetcher
	Auth       Authenticator
	Exporter   Exporter
	Palette    *Palette
	Location   *time.Location
	Logger     *slog.Logger
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	auth := cfg.Auth
	if auth == nil {
		auth = alwaysAuthenticated{}
	}

	events := NewEventStore(cfg.Events, cfg.Categories, auth, logger.With("component", "events"))
	tasks := NewTaskStore(cfg.Tasks, logger.With("component", "tasks"))

	return &Session{
		Events:    events,
		Tasks:     tasks,
		View:      NewTransformer(cfg.Palette, loc, logger.With("component", "view")),
		Reports:   NewReportBuilder(cfg.Events, cfg.Tasks, events.Categories, auth, loc, logger.With("component", "report")),
		directory: cfg.Users,
		auth:      auth,
		exporter:  cfg.Exporter,
		loc:       loc,
		logger:    logger,
	}
}

func (s *Session) Location() *time.Location {
	return s.loc
}

// Start runs the one-shot session loads: subcalendars, the user directory
// and the task listing. Failures are joined; whatever loaded stays loaded.
func (s *Session) Start(ctx context.Context) error {
	var errs []error
	if err := s.Events.LoadCategories(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.LoadUsers(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Tasks.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadUsers fetches the user directory and assigns each user a color.
func (s *Session) LoadUsers(ctx context.Context) error {
	if s.directory == nil {
		return nil
	}
	if !s.auth.IsAuthenticated() {
		s.logger.Warn("authentication required before fetching users")
		return ErrNotAuthenticated
	}

	users, err := s.directory.FetchUsers(ctx)
	if err != nil {
		s.logger.Error("fetching users failed", "error", err)
		return &FetchError{Source: "users", Err: err}
	}
	for i := range users {
		users[i].Color = AssignColor(users[i].Name)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

func (s *Session) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]User(nil), s.users...)
}

// SearchUsers filters the directory by a case-insensitive name substring.
func (s *Session) SearchUsers(query string) []User {
	query = strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []User
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Name), query) {
			out = append(out, u)
		}
	}
	return out
}

// lookupUsers resolves emails against the directory. Unknown emails get the
// email as their name.
func (s *Session) lookupUsers(emails []string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEmail := make(map[string]User, len(s.users))
	for _, u := range s.users {
		byEmail[u.Email] = u
	}

	out := make([]User, 0, len(emails))
	for _, email := range emails {
		u, ok := byEmail[email]
		if !ok {
			u = User{Email: email, Name: email, Color: AssignColor(email)}
		}
		out = append(out, u)
	}
	return out
}

// OnVisibleRangeChanged fetches and merges [start, end] for every active user.
// Fetches run concurrently; the call returns once all of them settled.
func (s *Session) OnVisibleRangeChanged(ctx context.Context, start, end time.Time, emails []string) error {
	errs := make([]error, len(emails))

	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Events.FetchAndMerge(ctx, email, start, end)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (s *Session) OnHoverIntent(id string) (Tooltip, bool) {
	return s.View.Hover(id)
}

// Entries derives the view entries from the current store state.
func (s *Session) Entries() []ViewEntry {
	return s.View.Transform(s.Events.Snapshot(), s.Events.Categories(), s.Tasks.Tasks())
}

// Watch calls fn with freshly derived entries now and after every change to
// the event or task store, until ctx is done.
func (s *Session) Watch(ctx context.Context, fn func([]ViewEntry)) {
	eventsCh, cancelEvents := s.Events.Subscribe()
	defer cancelEvents()
	tasksCh, cancelTasks := s.Tasks.Subscribe()
	defer cancelTasks()

	fn(s.Entries())
	for {
		select {
		case <-ctx.Done():
			return
		case <-eventsCh:
		case <-tasksCh:
		}
		fn(s.Entries())
	}
}

// RequestReport builds the report for the given users and hands the full set
// of rows to the session exporter, if one is configured.
func (s *Session) RequestReport(ctx context.Context, emails []string, start, end time.Time) ([]ReportRow, error) {
	return s.ExportReport(ctx, s.exporter, emails, start, end)
}

// ExportReport is RequestReport with an explicit exporter. The exporter sees
// the complete row set in a single call, or nothing if any row failed.
func (s *Session) ExportReport(ctx context.Context, exporter Exporter, emails []string, start, end time.Time) ([]ReportRow, error) {
	if len(emails) == 0 {
		return nil, &ValidationError{Message: noUsersSelected}
	}

	rows, err := s.Reports.Build(ctx, s.lookupUsers(emails), start, end)
	if err != nil {
		return nil, err
	}

	if exporter != nil {
		if err := exporter.Export(ctx, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
