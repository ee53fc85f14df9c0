package clickup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/christopherklint97/workcal/internal/engine"
)

// Task is a logged task as served by the ClickUp proxy.
type Task struct {
	Title      string      `json:"taskTitle"`
	DateLogged epochMillis `json:"dateLogged"`
	LoggedBy   string      `json:"loggedBy"`
	Hours      int         `json:"taskHours"`
	Minutes    int         `json:"taskMinutes"`
	Emails     emailList   `json:"email"`
}

// emailList accepts either a single address or a list of addresses.
type emailList []string

func (l *emailList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = emailList{s}
		}
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("email must be a string or list of strings: %w", err)
		}
		*l = list
	}
	return nil
}

// epochMillis keeps the logged timestamp as a decimal string regardless of
// whether it was sent quoted.
type epochMillis string

func (m *epochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = epochMillis(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("dateLogged: %w", err)
	}
	*m = epochMillis(n.String())
	return nil
}

func (t Task) toEngine() (engine.Task, error) {
	if _, err := strconv.ParseInt(string(t.DateLogged), 10, 64); err != nil {
		return engine.Task{}, fmt.Errorf("task %q has invalid dateLogged %q", t.Title, t.DateLogged)
	}
	if t.Hours < 0 || t.Minutes < 0 {
		return engine.Task{}, fmt.Errorf("task %q has negative duration", t.Title)
	}

	hours, minutes := t.Hours+t.Minutes/60, t.Minutes%60
	return engine.Task{
		Title:      t.Title,
		DateLogged: string(t.DateLogged),
		LoggedBy:   t.LoggedBy,
		Emails:     append([]string(nil), t.Emails...),
		Hours:      hours,
		Minutes:    minutes,
	}, nil
}
