package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"
)

type CategoryID int

type Color string

// Category is one subcalendar (Office, Holiday, Sick, Remote).
type Category struct {
	ID    CategoryID `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Color Color      `json:"color,omitempty" yaml:"color,omitempty"`
}

type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Event is one scheduling entry owned by one user.
type Event struct {
	ID         string     `json:"id"`
	CategoryID CategoryID `json:"categoryId"`
	Title      string     `json:"title"`
	Start      time.Time  `json:"startDate"`
	End        time.Time  `json:"endDate"`
	AllDay     bool       `json:"allDay"`
	OwnerEmail string     `json:"ownerEmail"`
}

// Task is one logged work item from the task tracker.
type Task struct {
	Title      string   `json:"title" yaml:"title"`
	DateLogged string   `json:"dateLogged" yaml:"date_logged"` // epoch milliseconds
	LoggedBy   string   `json:"loggedBy" yaml:"logged_by"`
	Emails     []string `json:"emails" yaml:"emails"`
	Hours      int      `json:"hours" yaml:"hours"`
	Minutes    int      `json:"minutes" yaml:"minutes"`
}

// LoggedAt parses DateLogged as epoch milliseconds.
func (t Task) LoggedAt() (time.Time, error) {
	ms, err := strconv.ParseInt(t.DateLogged, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing logged date %q: %w", t.DateLogged, err)
	}
	return time.UnixMilli(ms), nil
}

// AttributedTo reports whether email is one of the task's attributed emails.
// Matching is exact: no case folding or alias resolution.
func (t Task) AttributedTo(email string) bool {
	if email == "" {
		return false
	}
	return slices.Contains(t.Emails, email)
}

type TaskSummary struct {
	Title      string `json:"taskTitle"`
	Hours      int    `json:"taskHours"`
	Minutes    int    `json:"taskMinutes"`
	LoggedBy   string `json:"loggedBy"`
	DateLogged string `json:"dateLogged"`
}

// ViewEntry is one renderable calendar block. Tasks is nil when no task
// matched the event; it is never an empty non-nil slice.
type ViewEntry struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	AllDay          bool          `json:"allDay"`
	BackgroundColor Color         `json:"backgroundColor"`
	OwnerEmail      string        `json:"email"`
	CategoryID      CategoryID    `json:"subCalendarId"`
	CategoryName    string        `json:"subCalendarName"`
	StartDate       Date          `json:"startDate"`
	Tasks           []TaskSummary `json:"taskDetails"`
}

func (e ViewEntry) HasTasks() bool {
	return e.Tasks != nil
}

// Tooltip is the hover-detail content recorded for a view entry.
type Tooltip struct {
	Email        string        `json:"email"`
	CategoryName string        `json:"subCalendarName"`
	Start        string        `json:"start"`
	Title        string        `json:"title"`
	Tasks        []TaskSummary `json:"tasks"`
	Content      string        `json:"content"`
}

type ReportEvent struct {
	Email        string    `json:"email" yaml:"email"`
	Start        time.Time `json:"startDate" yaml:"start_date"`
	End          time.Time `json:"endDate" yaml:"end_date"`
	Hours        string    `json:"eventHours" yaml:"event_hours"`
	CategoryName string    `json:"subCalendarName" yaml:"sub_calendar_name"`
}

// ReportRow is one user's aggregated events and tasks for an export.
type ReportRow struct {
	Email  string        `json:"userEmail" yaml:"user_email"`
	Name   string        `json:"userName" yaml:"user_name"`
	Events []ReportEvent `json:"userEvents" yaml:"user_events"`
	Tasks  []Task        `json:"userTasks" yaml:"user_tasks"`
}

// EventFetcher fetches calendar events for one user. A zero start and end
// leave the window to the implementation.
type EventFetcher interface {
	FetchEvents(ctx context.Context, email string, start, end time.Time) ([]Event, error)
}

type TaskFetcher interface {
	FetchTasks(ctx context.Context) ([]Task, error)
	FetchTasksForUser(ctx context.Context, email string) ([]Task, error)
}

type CategoryFetcher interface {
	FetchCategories(ctx context.Context) ([]Category, error)
}

type UserFetcher interface {
	FetchUsers(ctx context.Context) ([]User, error)
}

type Authenticator interface {
	IsAuthenticated() bool
}

// Exporter receives a complete report in a single call.
type Exporter interface {
	Export(ctx context.Context, rows []ReportRow) error
}

type alwaysAuthenticated struct{}

func (alwaysAuthenticated) IsAuthenticated() bool { return true }
