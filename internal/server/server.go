// Package server exposes a session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/christopherklint97/workcal/internal/engine"
)

// RangeTracker fetches a visible range and remembers it for refreshes.
type RangeTracker interface {
	SetRange(ctx context.Context, start, end time.Time, emails []string) error
	RemoveUser(email string)
}

type sessionTracker struct {
	session *engine.Session
}

func (t sessionTracker) SetRange(ctx context.Context, start, end time.Time, emails []string) error {
	return t.session.OnVisibleRangeChanged(ctx, start, end, emails)
}

func (t sessionTracker) RemoveUser(email string) {
	t.session.Events.RemoveUser(email)
}

type Server struct {
	session  *engine.Session
	tracker  RangeTracker
	exporter engine.Exporter
	logger   *slog.Logger
	router   *gin.Engine
}

// New builds the HTTP API. A nil tracker fetches ranges directly on the
// session; a nil exporter makes reports response-only.
func New(session *engine.Session, tracker RangeTracker, exporter engine.Exporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if tracker == nil {
		tracker = sessionTracker{session: session}
	}

	s := &Server{
		session:  session,
		tracker:  tracker,
		exporter: exporter,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), collectMetrics())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Accept-Encoding"},
		ExposeHeaders:   []string{"Content-Length", "Content-Encoding"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/users", s.listUsers)
	api.GET("/categories", s.listCategories)

	cal := api.Group("/calendar")
	cal.POST("/range", s.setRange)
	cal.GET("/entries", gzip.Gzip(gzip.DefaultCompression), s.listEntries)
	cal.DELETE("/users/:email", s.removeUser)
	cal.GET("/hover/:id", s.hover)

	api.POST("/reports", gzip.Gzip(gzip.DefaultCompression), s.createReport)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// writeError maps engine errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		vErr     *engine.ValidationError
		fetchErr *engine.FetchError
		status   int
	)
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
