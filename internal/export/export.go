// Package export writes finished reports to files in one of several formats.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/christopherklint97/workcal/internal/engine"
)

const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatSQLite = "sqlite"
)

var Formats = []string{FormatCSV, FormatJSON, FormatYAML, FormatSQLite}

// Report is the envelope written by the JSON and YAML exporters.
type Report struct {
	RunID       string             `json:"runId" yaml:"run_id" jsonschema:"format=uuid"`
	GeneratedAt time.Time          `json:"generatedAt" yaml:"generated_at"`
	Rows        []engine.ReportRow `json:"rows" yaml:"rows"`
}

func newReport(rows []engine.ReportRow) Report {
	return Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}
}

// Schema returns the JSON schema of the report envelope.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&Report{})
	s.Title = "workcal report"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return data, nil
}

type JSONExporter struct {
	w io.Writer
}

func NewJSONExporter(w io.Writer) *JSONExporter {
	return &JSONExporter{w: w}
}

func (e *JSONExporter) Export(_ context.Context, rows []engine.ReportRow) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newReport(rows)); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}
	return nil
}

type YAMLExporter struct {
	w io.Writer
}

func NewYAMLExporter(w io.Writer) *YAMLExporter {
	return &YAMLExporter{w: w}
}

func (e *YAMLExporter) Export(_ context.Context, rows []engine.ReportRow) error {
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(newReport(rows)); err != nil {
		return fmt.Errorf("encoding yaml report: %w", err)
	}
	return enc.Close()
}

// FileExporter writes each report to a new file under dir. SQLite reports
// accumulate in a single database file instead.
type FileExporter struct {
	format string
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex // serializes exports
	lastPath string
}

func NewFileExporter(format, dir string, logger *slog.Logger) (*FileExporter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	switch format {
	case FormatCSV, FormatJSON, FormatYAML, FormatSQLite:
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if dir == "" {
		dir = "."
	}
	return &FileExporter{format: format, dir: dir, logger: logger, now: time.Now}, nil
}

// LastPath returns the file written by the most recent Export.
func (e *FileExporter) LastPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastPath
}

func (e *FileExporter) Export(ctx context.Context, rows []engine.ReportRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	if e.format == FormatSQLite {
		path := filepath.Join(e.dir, "workcal-reports.db")
		db, err := OpenSQLite(path)
		if err != nil {
			return err
		}
		defer db.Close()

		runID, err := db.Export(ctx, rows)
		if err != nil {
			return err
		}
		e.lastPath = path
		e.logger.Info("report exported", "format", e.format, "path", path, "run", runID, "users", len(rows))
		return nil
	}

	name := fmt.Sprintf("workcal-report-%s-%s.%s", e.now().Format("20060102-150405"), uuid.NewString()[:8], e.format)
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	var exporter engine.Exporter
	switch e.format {
	case FormatCSV:
		exporter = NewCSVExporter(f)
	case FormatJSON:
		exporter = NewJSONExporter(f)
	case FormatYAML:
		exporter = NewYAMLExporter(f)
	}

	if err := exporter.Export(ctx, rows); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}

	e.lastPath = path
	e.logger.Info("report exported", "format", e.format, "path", path, "users", len(rows))
	return nil
}
