package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/christopherklint97/workcal/internal/engine"
)

// Default window used when the caller leaves the range open.
const (
	defaultLookBehind = 30 * 24 * time.Hour
	defaultLookAhead  = 90 * 24 * time.Hour
)

// ICSSource reads one user's events from an iCalendar feed, either a URL or
// a local file.
type ICSSource struct {
	source          string
	palette         *engine.Palette
	defaultCategory engine.CategoryID
	loc             *time.Location
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewICSSource(source string, palette *engine.Palette, defaultCategory engine.CategoryID, loc *time.Location, logger *slog.Logger) *ICSSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if loc == nil {
		loc = time.Local
	}
	if palette == nil {
		palette = engine.NewPalette()
	}
	return &ICSSource{
		source:          source,
		palette:         palette,
		defaultCategory: defaultCategory,
		loc:             loc,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		logger:          logger,
	}
}

func (s *ICSSource) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(s.source, "http://") || strings.HasPrefix(s.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(s.source)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	return f, nil
}

// FetchEvents returns the feed's events overlapping [start, end), with
// recurring events expanded into one event per occurrence. An end at
// midnight names the last day of the range, which is included.
func (s *ICSSource) FetchEvents(ctx context.Context, email string, start, end time.Time) ([]engine.Event, error) {
	if start.IsZero() || end.IsZero() {
		now := time.Now()
		start, end = now.Add(-defaultLookBehind), now.Add(defaultLookAhead)
	} else if isMidnight(end.In(s.loc)) {
		end = end.AddDate(0, 0, 1)
	}

	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	events, err := s.parse(r, email, start, end)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("ics feed parsed", "email", email, "events", len(events))
	return events, nil
}

func (s *ICSSource) parse(r io.Reader, email string, windowStart, windowEnd time.Time) ([]engine.Event, error) {
	dec := ical.NewDecoder(r)
	events := []engine.Event{}

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &engine.ShapeError{Source: "ics", Detail: "parsing calendar", Err: err}
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			occurrences, err := s.expand(ical.Event{Component: component}, email, windowStart, windowEnd)
			if err != nil {
				s.logger.Warn("skipping ics event", "email", email, "error", err)
				continue
			}
			events = append(events, occurrences...)
		}
	}

	return events, nil
}

func (s *ICSSource) expand(event ical.Event, email string, windowStart, windowEnd time.Time) ([]engine.Event, error) {
	uid, err := event.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return nil, fmt.Errorf("event without UID")
	}

	start, err := event.DateTimeStart(s.loc)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", uid, err)
	}

	allDay := false
	if prop := event.Props.Get(ical.PropDateTimeStart); prop != nil && prop.ValueType() == ical.ValueDate {
		allDay = true
	}

	end, err := event.DateTimeEnd(s.loc)
	if err != nil || end.IsZero() {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	}

	summary, _ := event.Props.Text(ical.PropSummary)
	base := engine.Event{
		ID:         uid,
		CategoryID: s.category(event),
		Title:      summary,
		AllDay:     allDay,
		OwnerEmail: email,
	}

	var set *rrule.Set
	set, err = event.RecurrenceSet(s.loc)
	if err != nil {
		return nil, fmt.Errorf("event %s recurrence: %w", uid, err)
	}

	if set == nil {
		if !overlaps(start, end, windowStart, windowEnd) {
			return nil, nil
		}
		base.Start, base.End = start, end
		return []engine.Event{base}, nil
	}

	duration := end.Sub(start)
	var out []engine.Event
	// Occurrences that started before the window may still overlap it.
	for _, occ := range set.Between(windowStart.Add(-duration), windowEnd, true) {
		occEnd := occ.Add(duration)
		if !overlaps(occ, occEnd, windowStart, windowEnd) {
			continue
		}
		e := base
		e.ID = uid + "/" + occ.UTC().Format("20060102T150405Z")
		e.Start, e.End = occ, occEnd
		out = append(out, e)
	}
	return out, nil
}

// category maps the event's first CATEGORIES value to a known category by
// name, falling back to the source's default.
func (s *ICSSource) category(event ical.Event) engine.CategoryID {
	text, err := event.Props.Text(ical.PropCategories)
	if err != nil || text == "" {
		return s.defaultCategory
	}
	for _, name := range strings.Split(text, ",") {
		if c, ok := s.palette.Lookup(strings.TrimSpace(name)); ok {
			return c.ID
		}
	}
	return s.defaultCategory
}

func isMidnight(t time.Time) bool {
	h, m, sec := t.Clock()
	return h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0
}

func overlaps(start, end, windowStart, windowEnd time.Time) bool {
	if start.Equal(end) {
		return !start.Before(windowStart) && start.Before(windowEnd)
	}
	return start.Before(windowEnd) && end.After(windowStart)
}
