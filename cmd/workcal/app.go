package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/workcal/internal/calendar"
	"github.com/christopherklint97/workcal/internal/clickup"
	"github.com/christopherklint97/workcal/internal/config"
	"github.com/christopherklint97/workcal/internal/engine"
	"github.com/christopherklint97/workcal/internal/export"
	"github.com/christopherklint97/workcal/internal/scheduler"
	"github.com/christopherklint97/workcal/internal/teamup"
)

type app struct {
	cfg      *config.Config
	loc      *time.Location
	session  *engine.Session
	clickup  *clickup.Client
	exporter *export.FileExporter
	logger   *slog.Logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.TeamUp.ListID == "" {
		return nil, fmt.Errorf("teamup list ID not configured — run 'workcal config' to set it up")
	}
	return cfg, nil
}

// newApp wires the collaborators into a session and runs its start-up loads.
// Partial start-up failures are logged; the session stays usable.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	palette := engine.NewPalette(cfg.PaletteOverrides()...)

	tu := teamup.NewClient(cfg.TeamUp.BaseURL, cfg.TeamUp.ListID, loc, logger.With("client", "teamup"))
	if err := tu.Authenticate(ctx); err != nil {
		logger.Warn("teamup authentication failed", "error", err)
	}

	mux := calendar.NewMux(tu)
	for _, feed := range cfg.Calendar.Feeds {
		src := calendar.NewICSSource(feed.Source, palette, engine.CategoryID(cfg.Calendar.DefaultCategory), loc, logger.With("feed", feed.Email))
		mux.Register(feed.Email, src)
	}

	cu := clickup.NewClient(cfg.ClickUp.APIToken, cfg.ClickUp.BaseURL, cfg.CacheTTL(), logger.With("client", "clickup"))

	exporter, err := export.NewFileExporter(cfg.Export.Format, cfg.Export.Dir, logger.With("component", "export"))
	if err != nil {
		return nil, err
	}

	session := engine.NewSession(engine.SessionConfig{
		Events:     mux,
		Tasks:      cu,
		Categories: tu,
		Users:      tu,
		Auth:       tu,
		Exporter:   exporter,
		Palette:    palette,
		Location:   loc,
		Logger:     logger,
	})
	if err := session.Start(ctx); err != nil {
		logger.Warn("session started with errors", "error", err)
	}

	return &app{
		cfg:      cfg,
		loc:      loc,
		session:  session,
		clickup:  cu,
		exporter: exporter,
		logger:   logger,
	}, nil
}

// parseDay accepts YYYY-MM-DD or a natural-language date relative to now.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := engine.ParseDate(s, loc); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(s, time.Now().In(loc), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

func readPID() (int, error) {
	return scheduler.ReadPID()
}
