package view

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"forecast-explorer/internal/forecast"
)

// Spread describes how far a point's horizons drift from each other.
type Spread struct {
	Horizons int
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
}

// HorizonSpread summarises the predictions of a Step1Point across its horizons.
func HorizonSpread(p forecast.Step1Point) Spread {
	if len(p.Horizons) == 0 {
		return Spread{}
	}
	values := make([]float64, len(p.Horizons))
	for i, h := range p.Horizons {
		values[i] = h.Prediction
	}

	out := Spread{
		Horizons: len(values),
		Min:      floats.Min(values),
		Max:      floats.Max(values),
	}
	if len(values) == 1 {
		out.Mean = values[0]
		return out
	}
	out.Mean, out.StdDev = stat.MeanStdDev(values, nil)
	return out
}
