package forecast

import (
	"sort"
	"time"
)

// Horizon is one (step, prediction) pair issued at a base time.
type Horizon struct {
	Step       int
	Prediction float64
}

// Step1Point summarises everything a model issued at one base time that has a
// one-step-ahead forecast.
type Step1Point struct {
	ModelID    string
	BaseTime   time.Time
	Prediction float64
	Actual     float64
	HasActual  bool
	// Horizons holds every step issued at BaseTime, ascending.
	Horizons []Horizon
}

type groupKey struct {
	model string
	base  int64
}

// Aggregate builds one Step1Point per (model, base time) group of the subset.
// Groups without a step 1 record produce nothing. Output is ascending by base time.
func Aggregate(s Subset) []Step1Point {
	groups := make(map[groupKey][]Record)
	keys := make([]groupKey, 0)
	for _, r := range s.records {
		k := groupKey{model: r.ModelID, base: r.BaseTime.UnixNano()}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	points := make([]Step1Point, 0, len(keys))
	for _, k := range keys {
		recs := groups[k]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Step < recs[j].Step })

		first := -1
		for i, r := range recs {
			if r.Step == 1 {
				first = i
				break
			}
		}
		if first < 0 {
			continue
		}

		horizons := make([]Horizon, len(recs))
		for i, r := range recs {
			horizons[i] = Horizon{Step: r.Step, Prediction: r.Prediction}
		}

		head := recs[first]
		points = append(points, Step1Point{
			ModelID:    head.ModelID,
			BaseTime:   head.BaseTime,
			Prediction: head.Prediction,
			Actual:     head.Actual,
			HasActual:  head.HasActual,
			Horizons:   horizons,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].BaseTime.Equal(points[j].BaseTime) {
			return points[i].BaseTime.Before(points[j].BaseTime)
		}
		return points[i].ModelID < points[j].ModelID
	})
	return points
}
