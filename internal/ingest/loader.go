// Package ingest loads incident exports (JSON or CSV) into models.Incident values.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/miradorstack/mirador-sop/internal/models"
)

// Supported input formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Loader converts exports into incidents, skipping rows with no identifying text.
type Loader struct {
	logger *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// DetectFormat picks a format from the file extension, defaulting to JSON.
func DetectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// LoadFile reads incidents from path.
func (l *Loader) LoadFile(path string) ([]models.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open incidents file: %w", err)
	}
	defer f.Close()

	incidents, err := l.Load(f, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	l.logger.Info("incidents loaded", slog.String("path", path), slog.Int("count", len(incidents)))
	return incidents, nil
}

// Load decodes incidents from r in the given format.
func (l *Loader) Load(r io.Reader, format string) ([]models.Incident, error) {
	switch format {
	case FormatCSV:
		return l.loadCSV(r)
	case FormatJSON, "":
		return l.loadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func (l *Loader) loadJSON(r io.Reader) ([]models.Incident, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.Incident{}, nil
	}

	var objects []map[string]any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &objects); err != nil {
			return nil, fmt.Errorf("decode incident array: %w", err)
		}
	} else {
		// Table API responses wrap rows in "result"; request payloads use "incidents".
		var envelope struct {
			Result    []map[string]any `json:"result"`
			Incidents []map[string]any `json:"incidents"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode incident envelope: %w", err)
		}
		objects = envelope.Result
		if len(objects) == 0 {
			objects = envelope.Incidents
		}
	}

	records := make([]Record, 0, len(objects))
	for _, obj := range objects {
		records = append(records, RecordFromObject(obj))
	}
	return l.fromRecords(records)
}

func (l *Loader) loadCSV(r io.Reader) ([]models.Incident, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.Incident{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		raw := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				raw[col] = row[i]
			}
		}
		records = append(records, NewRecord(raw))
	}
	return l.fromRecords(records)
}

func (l *Loader) fromRecords(records []Record) ([]models.Incident, error) {
	incidents := make([]models.Incident, 0, len(records))
	skipped := 0
	for i, rec := range records {
		if rec.empty() {
			skipped++
			continue
		}
		inc, err := rec.Incident()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		incidents = append(incidents, inc)
	}
	if skipped > 0 {
		l.logger.Debug("skipped empty rows", slog.Int("count", skipped))
	}
	return incidents, nil
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
