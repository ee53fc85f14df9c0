package teamup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/christopherklint97/workcal/internal/apiclient"
	"github.com/christopherklint97/workcal/internal/engine"
)

const defaultBaseURL = "http://localhost:3000"

// Client talks to the TeamUp proxy exposed by the workcal backend.
type Client struct {
	listID string
	loc    *time.Location
	base   *http.Client
	api    *apiclient.Requester
	logger *slog.Logger

	mu     sync.RWMutex
	authed *http.Client
}

func NewClient(baseURL, listID string, loc *time.Location, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		listID: listID,
		loc:    loc,
		base: &http.Client{
			Timeout: 30 * time.Second,
		},
		api:    apiclient.New("teamup", baseURL, logger),
		logger: logger,
	}
}

// Authenticate exchanges the backend session for a TeamUp token. Later calls
// carry it as a bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	data, err := c.api.Do(ctx, c.base, http.MethodPost, "/api/teamup/auth", struct{}{})
	if err != nil {
		c.setToken("")
		return fmt.Errorf("authenticating with teamup: %w", err)
	}

	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.setToken("")
		return &engine.ShapeError{Source: "teamup auth", Detail: "decoding response", Err: err}
	}
	if resp.AuthToken == "" {
		c.setToken("")
		return &engine.ShapeError{Source: "teamup auth", Detail: "empty auth_token"}
	}

	c.setToken(resp.AuthToken)
	c.logger.Debug("teamup authenticated")
	return nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token == "" {
		c.authed = nil
		return
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	c.authed = &http.Client{
		Timeout:   c.base.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: c.base.Transport},
	}
}

func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.authed != nil
}

func (c *Client) authorized() (*http.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.authed == nil {
		return nil, engine.ErrNotAuthenticated
	}
	return c.authed, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	return c.api.Do(ctx, hc, http.MethodGet, path, nil)
}

// FetchUsers returns the members of the configured search list.
func (c *Client) FetchUsers(ctx context.Context) ([]engine.User, error) {
	if c.listID == "" {
		return nil, fmt.Errorf("teamup list ID is empty — set list_id in config or TEAMUP_LIST_ID env var")
	}
	data, err := c.get(ctx, "/api/teamup/searchUser/"+url.PathEscape(c.listID))
	if err != nil {
		return nil, fmt.Errorf("getting users: %w", err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, &engine.ShapeError{Source: "teamup users", Detail: "decoding response", Err: err}
	}

	out := make([]engine.User, 0, len(users))
	for _, u := range users {
		out = append(out, engine.User{Email: u.Email, Name: u.Name})
	}
	return out, nil
}

// FetchEvents returns email's events. The date bounds are only sent when
// both are set; otherwise the backend picks its default window.
func (c *Client) FetchEvents(ctx context.Context, email string, start, end time.Time) ([]engine.Event, error) {
	path := "/api/teamup/userEvents/" + url.PathEscape(email)
	if !start.IsZero() && !end.IsZero() {
		params := url.Values{
			"startDate": {engine.DateOf(start, c.loc).String()},
			"endDate":   {engine.DateOf(end, c.loc).String()},
		}
		path += "?" + params.Encode()
	}

	data, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("getting events for %s: %w", email, err)
	}
	return c.decodeEvents(data, email)
}

// FetchAllEvents returns the whole calendar's events in the backend's
// default window.
func (c *Client) FetchAllEvents(ctx context.Context) ([]engine.Event, error) {
	data, err := c.get(ctx, "/api/teamup/events")
	if err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	return c.decodeEvents(data, "")
}

func (c *Client) decodeEvents(data []byte, owner string) ([]engine.Event, error) {
	var raw []Event
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &engine.ShapeError{Source: "teamup events", Detail: "decoding response", Err: err}
	}

	events := make([]engine.Event, 0, len(raw))
	for _, r := range raw {
		e, err := r.toEngine(owner, c.loc)
		if err != nil {
			c.logger.Warn("skipping teamup event", "email", owner, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (c *Client) FetchCategories(ctx context.Context) ([]engine.Category, error) {
	data, err := c.get(ctx, "/api/teamup/subcalendars")
	if err != nil {
		return nil, fmt.Errorf("getting subcalendars: %w", err)
	}

	var subcals []Subcalendar
	if err := json.Unmarshal(data, &subcals); err != nil {
		return nil, &engine.ShapeError{Source: "teamup subcalendars", Detail: "decoding response", Err: err}
	}

	out := make([]engine.Category, 0, len(subcals))
	for _, s := range subcals {
		out = append(out, engine.Category{ID: s.ID, Name: s.Name})
	}
	return out, nil
}
