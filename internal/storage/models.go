package storage

import (
	"time"

	"forecast-explorer/internal/forecast"
)

// ForecastRow mirrors one row of the forecasts table.
type ForecastRow struct {
	ModelID    string
	BaseTS     time.Time
	Step       int32
	Prediction float64
	Actual     *float64
}

func rowFromRecord(r forecast.Record) ForecastRow {
	row := ForecastRow{
		ModelID:    r.ModelID,
		BaseTS:     r.BaseTime.UTC(),
		Step:       int32(r.Step),
		Prediction: r.Prediction,
	}
	if r.HasActual {
		actual := r.Actual
		row.Actual = &actual
	}
	return row
}

// Record converts the row into a core forecast record.
func (r ForecastRow) Record() forecast.Record {
	rec := forecast.Record{
		ModelID:    r.ModelID,
		BaseTime:   r.BaseTS.UTC(),
		Step:       int(r.Step),
		Prediction: r.Prediction,
	}
	if r.Actual != nil {
		rec.Actual = *r.Actual
		rec.HasActual = true
	}
	return rec
}
