package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const noUsersSelected = "please select at least one employee"

// ReportBuilder produces one ReportRow per selected user for an explicit
// date range.
type ReportBuilder struct {
	events     EventFetcher
	tasks      TaskFetcher
	categories func() []Category
	auth       Authenticator
	loc        *time.Location
	logger     *slog.Logger
}

// NewReportBuilder wires the builder to its fetchers. categories returns the
// already-known subcalendar table; it is read once per build. A nil auth
// never blocks a build.
func NewReportBuilder(events EventFetcher, tasks TaskFetcher, categories func() []Category, auth Authenticator, loc *time.Location, logger *slog.Logger) *ReportBuilder {
	if categories == nil {
		categories = func() []Category { return nil }
	}
	if auth == nil {
		auth = alwaysAuthenticated{}
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReportBuilder{
		events:     events,
		tasks:      tasks,
		categories: categories,
		auth:       auth,
		loc:        loc,
		logger:     logger,
	}
}

// Build fetches every user's events and tasks concurrently and returns the
// rows in the order of users once all of them are ready. If any user's fetch
// fails, Build returns no rows and an error joining every failure.
func (b *ReportBuilder) Build(ctx context.Context, users []User, start, end time.Time) ([]ReportRow, error) {
	if len(users) == 0 {
		return nil, &ValidationError{Message: noUsersSelected}
	}

	from, to := DateOf(start, b.loc), DateOf(end, b.loc)
	if to < from {
		return nil, &ValidationError{Message: fmt.Sprintf("report range ends (%s) before it starts (%s)", to, from)}
	}
	if !b.auth.IsAuthenticated() {
		b.logger.Warn("authentication required before building a report", "users", len(users))
		return nil, ErrNotAuthenticated
	}
	categories := b.categories()

	rows := make([]ReportRow, len(users))
	errs := make([]error, len(users))

	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows[i], errs[i] = b.buildRow(ctx, user, start, end, from, to, categories)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		b.logger.Error("report failed", "users", len(users), "error", err)
		return nil, err
	}

	b.logger.Debug("report built", "users", len(users), "from", from, "to", to)
	return rows, nil
}

func (b *ReportBuilder) buildRow(ctx context.Context, user User, start, end time.Time, from, to Date, categories []Category) (ReportRow, error) {
	var (
		events []Event
		tasks  []Task
	)

	// Both fetches settle before either result is used.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		events, err = b.events.FetchEvents(ctx, user.Email, start, end)
		if err != nil {
			return &FetchError{Source: "events", Email: user.Email, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tasks, err = b.tasks.FetchTasksForUser(ctx, user.Email)
		if err != nil {
			return &FetchError{Source: "tasks", Email: user.Email, Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return ReportRow{}, err
	}

	row := ReportRow{
		Email:  user.Email,
		Name:   user.Name,
		Events: make([]ReportEvent, 0, len(events)),
		Tasks:  make([]Task, 0),
	}

	for _, ev := range events {
		row.Events = append(row.Events, ReportEvent{
			Email:        user.Email,
			Start:        ev.Start,
			End:          ev.End,
			Hours:        FormatHours(ev.End.Sub(ev.Start)),
			CategoryName: CategoryName(categories, ev.CategoryID),
		})
	}

	for _, task := range tasks {
		at, err := task.LoggedAt()
		if err != nil {
			b.logger.Debug("task without usable logged date", "email", user.Email, "task", task.Title, "error", err)
			continue
		}
		if DateOf(at, b.loc).Within(from, to) {
			row.Tasks = append(row.Tasks, task)
		}
	}

	return row, nil
}

// FormatHours renders d in hours with exactly two decimals.
func FormatHours(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/3600000, 'f', 2, 64)
}
