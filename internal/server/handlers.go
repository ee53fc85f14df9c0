package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/christopherklint97/workcal/internal/engine"
)

type rangeRequest struct {
	Start  string   `json:"start" binding:"required,datetime=2006-01-02"`
	End    string   `json:"end" binding:"required,datetime=2006-01-02"`
	Emails []string `json:"emails" binding:"required,min=1,dive,email"`
}

type reportRequest struct {
	Start  string   `json:"startDate" binding:"required,datetime=2006-01-02"`
	End    string   `json:"endDate" binding:"required,datetime=2006-01-02"`
	Emails []string `json:"emails" binding:"omitempty,dive,email"`
	Export bool     `json:"export"`
}

func (s *Server) parseRange(start, end string) (time.Time, time.Time, error) {
	loc := s.session.Location()
	from, err := engine.ParseDate(start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &engine.ValidationError{Message: "invalid start date"}
	}
	to, err := engine.ParseDate(end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &engine.ValidationError{Message: "invalid end date"}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, &engine.ValidationError{Message: "end date is before start date"}
	}
	return from, to, nil
}

func (s *Server) listUsers(c *gin.Context) {
	if q := c.Query("q"); q != "" {
		c.JSON(http.StatusOK, s.session.SearchUsers(q))
		return
	}
	c.JSON(http.StatusOK, s.session.Users())
}

func (s *Server) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Events.Categories())
}

func (s *Server) setRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := s.parseRange(req.Start, req.End)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.tracker.SetRange(c.Request.Context(), start, end, req.Emails); err != nil {
		s.writeError(c, err)
		return
	}
	s.listEntries(c)
}

func (s *Server) listEntries(c *gin.Context) {
	entries := s.session.Entries()
	viewEntries.Set(float64(len(entries)))
	c.JSON(http.StatusOK, entries)
}

func (s *Server) removeUser(c *gin.Context) {
	s.tracker.RemoveUser(c.Param("email"))
	c.Status(http.StatusNoContent)
}

func (s *Server) hover(c *gin.Context) {
	tip, ok := s.session.OnHoverIntent(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, tip)
}

func (s *Server) createReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := s.parseRange(req.Start, req.End)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var exporter engine.Exporter
	if req.Export {
		exporter = s.exporter
	}
	rows, err := s.session.ExportReport(c.Request.Context(), exporter, req.Emails, start, end)
	if err != nil {
		reportsTotal.WithLabelValues("error").Inc()
		s.writeError(c, err)
		return
	}

	reportsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"rows": rows, "exported": exporter != nil})
}
