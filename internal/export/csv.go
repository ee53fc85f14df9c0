package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

var csvHeader = []string{
	"user_email", "user_name", "kind", "title", "category",
	"start", "end", "hours", "minutes", "logged_by",
}

// CSVExporter flattens a report to one line per event and per task.
type CSVExporter struct {
	w io.Writer
}

func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{w: w}
}

func (e *CSVExporter) Export(_ context.Context, rows []engine.ReportRow) error {
	cw := csv.NewWriter(e.w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range rows {
		for _, ev := range row.Events {
			rec := []string{
				row.Email, row.Name, "event", "", ev.CategoryName,
				ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339),
				ev.Hours, "", "",
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing csv event row: %w", err)
			}
		}
		for _, t := range row.Tasks {
			logged := t.DateLogged
			if at, err := t.LoggedAt(); err == nil {
				logged = at.UTC().Format(time.RFC3339)
			}
			rec := []string{
				row.Email, row.Name, "task", t.Title, "",
				logged, "",
				strconv.Itoa(t.Hours), strconv.Itoa(t.Minutes), t.LoggedBy,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing csv task row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
