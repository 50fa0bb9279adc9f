// Package power converts mixed W/kW meter exports into a kW time series.
package power

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeColumn is the timestamp column of a meter export.
const TimeColumn = "Time"

// ErrNoReadings is returned when nothing in the export could be converted.
var ErrNoReadings = errors.New("power: no readings with a recognised unit")

var thousand = decimal.NewFromInt(1000)

// Reading is one converted sample.
type Reading struct {
	Time time.Time
	KW   decimal.Decimal
}

// Summary counts how an export was converted.
type Summary struct {
	Rows     int
	Kept     int
	BadTime  int
	Unitless int
}

// ParseKW converts "1.5 kW" or "1500 W" into kilowatts. Values without a
// recognised unit are rejected.
func ParseKW(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Decimal{}, false
	}

	switch {
	case strings.Contains(value, "kW"):
		n, err := decimal.NewFromString(strings.TrimSpace(strings.Replace(value, "kW", "", 1)))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return n, true
	case strings.Contains(value, "W"):
		n, err := decimal.NewFromString(strings.TrimSpace(strings.Replace(value, "W", "", 1)))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return n.Div(thousand), true
	default:
		return decimal.Decimal{}, false
	}
}

// ReadCSV reads the Time column and the named reading column from a meter
// export and returns the convertible readings in time order.
func ReadCSV(r io.Reader, column string, parseTime func(string) (time.Time, error)) ([]Reading, Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("read header: %w", err)
	}

	timeIdx, valueIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
		switch name {
		case TimeColumn:
			timeIdx = i
		case column:
			valueIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, Summary{}, fmt.Errorf("missing column %q", TimeColumn)
	}
	if valueIdx < 0 {
		return nil, Summary{}, fmt.Errorf("missing column %q", column)
	}

	var summary Summary
	readings := make([]Reading, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, summary, fmt.Errorf("read row %d: %w", summary.Rows+1, err)
		}
		summary.Rows++

		if timeIdx >= len(row) || valueIdx >= len(row) {
			summary.Unitless++
			continue
		}
		ts, err := parseTime(strings.Trim(row[timeIdx], `" `))
		if err != nil {
			summary.BadTime++
			continue
		}
		kw, ok := ParseKW(strings.Trim(row[valueIdx], `"`))
		if !ok {
			summary.Unitless++
			continue
		}
		readings = append(readings, Reading{Time: ts, KW: kw})
		summary.Kept++
	}

	if len(readings) == 0 {
		return nil, summary, ErrNoReadings
	}

	sort.SliceStable(readings, func(i, j int) bool { return readings[i].Time.Before(readings[j].Time) })
	return readings, summary, nil
}
