package teamup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", data)
	}
	*id = flexID(n.String())
	return nil
}

type authResponse struct {
	AuthToken string `json:"auth_token"`
}

type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Subcalendar struct {
	ID    engine.CategoryID `json:"id"`
	Name  string            `json:"name"`
	Color json.RawMessage   `json:"color,omitempty"`
}

// Event mirrors the backend's userEvents payload. The subcalendar field name
// is spelled the way the backend sends it.
type Event struct {
	ID            flexID            `json:"id"`
	SubcalendarID engine.CategoryID `json:"subcalenderId"`
	Title         string            `json:"title"`
	StartDate     string            `json:"startDate"`
	EndDate       string            `json:"endDate"`
	AllDay        bool              `json:"all_day"`
	Custom        struct {
		Email string `json:"email"`
	} `json:"custom"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	engine.DateFormat,
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (e Event) toEngine(owner string, loc *time.Location) (engine.Event, error) {
	start, err := parseTime(e.StartDate, loc)
	if err != nil {
		return engine.Event{}, fmt.Errorf("event %s start: %w", e.ID, err)
	}
	end, err := parseTime(e.EndDate, loc)
	if err != nil {
		return engine.Event{}, fmt.Errorf("event %s end: %w", e.ID, err)
	}

	email := e.Custom.Email
	if email == "" {
		email = owner
	}

	return engine.Event{
		ID:         string(e.ID),
		CategoryID: e.SubcalendarID,
		Title:      e.Title,
		Start:      start,
		End:        end,
		AllDay:     e.AllDay,
		OwnerEmail: email,
	}, nil
}
