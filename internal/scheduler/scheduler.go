package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/christopherklint97/workcal/internal/config"
	"github.com/christopherklint97/workcal/internal/engine"
)

type visibleRange struct {
	start, end time.Time
	emails     []string
}

// Scheduler periodically refreshes tasks and re-fetches the visible range
// so the view stays current without user interaction.
type Scheduler struct {
	session    *engine.Session
	spec       string
	invalidate func()
	notify     bool
	logger     *slog.Logger

	mu          sync.Mutex
	visible     *visibleRange
	lastEntries int
	notifier    func(title, message string) error
}

type Option func(*Scheduler)

// WithInvalidate registers a hook run before every refresh, typically to
// drop cached task listings.
func WithInvalidate(fn func()) Option {
	return func(s *Scheduler) { s.invalidate = fn }
}

func WithNotifications(enabled bool) Option {
	return func(s *Scheduler) { s.notify = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(session *engine.Session, spec string, opts ...Option) *Scheduler {
	s := &Scheduler{
		session:     session,
		spec:        spec,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		lastEntries: -1,
		notifier:    SendNotification,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRange fetches the given range and remembers it for later refreshes.
func (s *Scheduler) SetRange(ctx context.Context, start, end time.Time, emails []string) error {
	s.mu.Lock()
	s.visible = &visibleRange{start: start, end: end, emails: append([]string(nil), emails...)}
	s.mu.Unlock()

	return s.session.OnVisibleRangeChanged(ctx, start, end, emails)
}

// RemoveUser drops email from the tracked range and from the session.
func (s *Scheduler) RemoveUser(email string) {
	s.mu.Lock()
	if s.visible != nil {
		var kept []string
		for _, e := range s.visible.emails {
			if e != email {
				kept = append(kept, e)
			}
		}
		s.visible = &visibleRange{start: s.visible.start, end: s.visible.end, emails: kept}
	}
	s.mu.Unlock()

	s.session.Events.RemoveUser(email)
}

// RefreshNow reloads tasks and re-fetches the tracked range.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	if s.invalidate != nil {
		s.invalidate()
	}

	var errs []error
	if err := s.session.Tasks.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	visible := s.visible
	s.mu.Unlock()

	if visible != nil && len(visible.emails) > 0 {
		if err := s.session.OnVisibleRangeChanged(ctx, visible.start, visible.end, visible.emails); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("refresh incomplete", "error", err)
		return err
	}

	s.announce()
	return nil
}

func (s *Scheduler) announce() {
	entries := s.session.Entries()
	withTasks := 0
	for _, e := range entries {
		if e.HasTasks() {
			withTasks++
		}
	}

	s.mu.Lock()
	changed := s.lastEntries >= 0 && s.lastEntries != len(entries)
	s.lastEntries = len(entries)
	s.mu.Unlock()

	s.logger.Debug("refresh complete", "entries", len(entries), "with_tasks", withTasks)
	if changed && s.notify {
		msg := fmt.Sprintf("%d calendar entries, %d with logged tasks", len(entries), withTasks)
		if err := s.notifier("workcal", msg); err != nil {
			s.logger.Warn("sending notification failed", "error", err)
		}
	}
}

// Run refreshes on the cron schedule until ctx is cancelled. An empty schedule
// disables periodic refresh and Run simply waits.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePID()

	if s.spec == "" {
		<-ctx.Done()
		return nil
	}

	c := cron.New(cron.WithLocation(s.session.Location()))
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.RefreshNow(ctx); err != nil {
			s.logger.Error("scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parsing refresh schedule %q: %w", s.spec, err)
	}

	s.logger.Info("scheduler started", "schedule", s.spec)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// ValidateSpec reports whether spec is a valid five-field cron expression.
func ValidateSpec(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

func pidPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workcal.pid"), nil
}

func writePID() error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	path, err := pidPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePID() {
	if path, err := pidPath(); err == nil {
		os.Remove(path)
	}
}

func ReadPID() (int, error) {
	path, err := pidPath()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running server found")
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
