package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/christopherklint97/workcal/internal/apiclient"
	"github.com/christopherklint97/workcal/internal/engine"
)

const defaultBaseURL = "http://localhost:3000"

type Client struct {
	httpClient *http.Client
	api        *apiclient.Requester
	cache      *TaskCache
	logger     *slog.Logger
}

func NewClient(apiToken string, baseURL string, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	api := apiclient.New("clickup", baseURL, logger)
	if apiToken != "" {
		api.Header = func(req *http.Request) {
			req.Header.Set("Authorization", apiToken)
		}
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		api:    api,
		cache:  NewTaskCache(cacheTTL),
		logger: logger,
	}
}

// FetchTasks returns every logged task. Results are served from the cache
// until it expires or is invalidated.
func (c *Client) FetchTasks(ctx context.Context) ([]engine.Task, error) {
	if cached := c.cache.Get(); cached != nil {
		c.logger.Debug("tasks served from cache", "count", len(cached))
		return cached, nil
	}

	tasks, err := c.fetch(ctx, "/api/clickup/tasks", "")
	if err != nil {
		return nil, err
	}
	c.cache.Set(tasks)
	return tasks, nil
}

// FetchTasksForUser returns the tasks attributed to email. It bypasses the
// cache so reports always see current data.
func (c *Client) FetchTasksForUser(ctx context.Context, email string) ([]engine.Task, error) {
	return c.fetch(ctx, "/api/clickup/tasks/"+url.PathEscape(email), email)
}

func (c *Client) InvalidateCache() {
	c.cache.Invalidate()
}

func (c *Client) fetch(ctx context.Context, path, email string) ([]engine.Task, error) {
	data, err := c.api.Do(ctx, c.httpClient, http.MethodGet, path, nil)
	if err != nil {
		if email != "" {
			return nil, fmt.Errorf("getting tasks for %s: %w", email, err)
		}
		return nil, fmt.Errorf("getting tasks: %w", err)
	}

	var raw []Task
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &engine.ShapeError{Source: "clickup tasks", Detail: "decoding response", Err: err}
	}

	tasks := make([]engine.Task, 0, len(raw))
	for _, r := range raw {
		task, err := r.toEngine()
		if err != nil {
			c.logger.Warn("skipping clickup task", "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
