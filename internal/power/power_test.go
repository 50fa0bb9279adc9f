package power

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKW(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.5 kW", "1.5", true},
		{"1500 W", "1.5", true},
		{" 250 W ", "0.25", true},
		{"0 kW", "0", true},
		{"12", "", false},
		{"", "", false},
		{"n/a W", "", false},
		{"3 MWh", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKW(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			}
		})
	}
}

func parseRFC3339(v string) (time.Time, error) { return time.Parse(time.RFC3339, v) }

func TestReadCSV(t *testing.T) {
	in := `"Time","P1","P2"
"2024-01-01T01:00:00Z","1200 W","x"
"2024-01-01T00:00:00Z","2.5 kW","x"
"2024-01-01T02:00:00Z","",""
"garbage","1 kW",""
"2024-01-01T03:00:00Z","7",""
`
	readings, summary, err := ReadCSV(strings.NewReader(in), "P1", parseRFC3339)
	require.NoError(t, err)

	assert.Equal(t, Summary{Rows: 5, Kept: 2, BadTime: 1, Unitless: 2}, summary)
	require.Len(t, readings, 2)
	assert.True(t, readings[0].KW.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, readings[1].KW.Equal(decimal.RequireFromString("1.2")))
	assert.True(t, readings[0].Time.Before(readings[1].Time))
}

func TestReadCSVErrors(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("Time,P2\n"), "P1", parseRFC3339)
	assert.ErrorContains(t, err, "P1")

	_, _, err = ReadCSV(strings.NewReader("Stamp,P1\n"), "P1", parseRFC3339)
	assert.ErrorContains(t, err, "Time")

	_, _, err = ReadCSV(strings.NewReader("Time,P1\n2024-01-01T00:00:00Z,5\n"), "P1", parseRFC3339)
	assert.True(t, errors.Is(err, ErrNoReadings))
}
