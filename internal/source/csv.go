package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"forecast-explorer/internal/forecast"
)

// Column names of the predictions table.
const (
	ColumnModel      = "id_modelo"
	ColumnBaseTime   = "hora"
	ColumnStep       = "paso"
	ColumnPrediction = "prediccion"
	ColumnActual     = "real"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts the timestamp layouts found in prediction exports.
// Times without a zone are read as UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// Stats counts what a CSV read kept and dropped.
type Stats struct {
	Rows        int
	Kept        int
	BadTime     int
	BadStep     int
	BadNumber   int
	ActualBlank int
}

// CSV loads the predictions table from a file.
type CSV struct {
	path   string
	logger zerolog.Logger
}

// NewCSV constructs a file-backed loader.
func NewCSV(path string, logger zerolog.Logger) *CSV {
	return &CSV{path: path, logger: logger.With().Str("component", "csv_source").Logger()}
}

// Load reads and decodes the configured file.
func (c *CSV) Load(ctx context.Context) ([]forecast.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open predictions csv: %w", err)
	}
	defer file.Close()

	records, stats, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}

	event := c.logger.Info()
	if stats.BadTime+stats.BadStep+stats.BadNumber > 0 {
		event = c.logger.Warn()
	}
	event.Str("path", c.path).
		Int("rows", stats.Rows).
		Int("kept", stats.Kept).
		Int("bad_time", stats.BadTime).
		Int("bad_step", stats.BadStep).
		Int("bad_number", stats.BadNumber).
		Msg("predictions csv loaded")

	return records, nil
}

// ReadCSV decodes a predictions table. Rows with a malformed timestamp, step
// or prediction are dropped and counted; a blank actual leaves HasActual unset.
func ReadCSV(r io.Reader) ([]forecast.Record, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, errors.New("empty file")
		}
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}

	idx := indexColumns(header)
	for _, required := range []string{ColumnModel, ColumnBaseTime, ColumnStep, ColumnPrediction} {
		if _, ok := idx[required]; !ok {
			return nil, Stats{}, fmt.Errorf("missing column %q", required)
		}
	}
	actualCol, hasActual := idx[ColumnActual]

	var stats Stats
	records := make([]forecast.Record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		base, err := ParseTime(field(row, idx[ColumnBaseTime]))
		if err != nil {
			stats.BadTime++
			continue
		}
		step, err := parseStep(field(row, idx[ColumnStep]))
		if err != nil {
			stats.BadStep++
			continue
		}
		prediction, err := strconv.ParseFloat(strings.TrimSpace(field(row, idx[ColumnPrediction])), 64)
		if err != nil {
			stats.BadNumber++
			continue
		}

		rec := forecast.Record{
			ModelID:    strings.TrimSpace(field(row, idx[ColumnModel])),
			BaseTime:   base,
			Step:       step,
			Prediction: prediction,
		}
		if hasActual {
			raw := strings.TrimSpace(field(row, actualCol))
			if actual, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(actual) {
				rec.Actual = actual
				rec.HasActual = true
			} else {
				stats.ActualBlank++
			}
		}

		records = append(records, rec)
		stats.Kept++
	}

	return records, stats, nil
}

func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
		idx[name] = i
	}
	return idx
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseStep accepts integral values, including "2.0" as written by dataframe exports.
func parseStep(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("step %d below 1", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f < 1 || f != float64(int(f)) {
		return 0, fmt.Errorf("step %q is not a positive integer", raw)
	}
	return int(f), nil
}
