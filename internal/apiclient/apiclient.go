// Package apiclient holds the retrying JSON request loop shared by the
// backend proxy clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

const maxRetries = 3

// Requester sends requests to one API, retrying 429 and 5xx responses and
// transport errors with exponential backoff.
type Requester struct {
	name    string
	baseURL string
	logger  *slog.Logger

	// Header decorates every attempt, e.g. with credentials.
	Header func(*http.Request)
	// Backoff is the wait before retry attempt+1.
	Backoff func(attempt int) time.Duration
}

func New(name, baseURL string, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Requester{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		Backoff: Exponential,
	}
}

// Do sends method path on hc, JSON-encoding body when it is not nil, and
// returns the body of a 2xx response.
func (r *Requester) Do(ctx context.Context, hc *http.Client, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	r.logger.Debug(r.name+" API request", "method", method, "path", path)

	var resp *http.Response
	requestStart := time.Now()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.Header != nil {
			r.Header(req)
		}

		resp, err = hc.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				r.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
				return nil, fmt.Errorf("sending request: %w", err)
			}
			r.logger.Debug("API request transport error, retrying", "method", method, "path", path, "attempt", attempt+1, "error", err)
			if err := r.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				r.logger.Error("API request failed after retries", "method", method, "path", path, "status", resp.StatusCode, "attempts", maxRetries+1, "elapsed", time.Since(requestStart))
				return nil, fmt.Errorf("API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			r.logger.Debug("API request retryable error", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt+1)
			if err := r.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	r.logger.Debug(r.name+" API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", Truncate(string(respBody), 200))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, Truncate(string(respBody), 200))
	}

	return respBody, nil
}

func (r *Requester) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(r.Backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Exponential waits 1s, 2s, 4s, ...
func Exponential(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
