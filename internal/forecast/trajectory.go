package forecast

import (
	"math"
	"sort"
	"time"
)

// DefaultStepUnit is the horizon length used when none is configured.
const DefaultStepUnit = time.Hour

// TrajectoryPoint is one horizon projected onto the time it targets.
type TrajectoryPoint struct {
	Step       int
	Time       time.Time
	Prediction float64
}

// Trajectory is every prediction issued at Origin, ascending by step.
type Trajectory struct {
	ModelID string
	Origin  time.Time
	Points  []TrajectoryPoint
}

// Singleton reports whether only the origin horizon is available.
func (t Trajectory) Singleton() bool { return len(t.Points) == 1 }

// SelectTrajectory extracts the forecast modelID issued at origin. The boolean
// is false when the subset holds nothing for that model and base time.
// Step n is projected to origin + (n-1)*unit.
func SelectTrajectory(s Subset, modelID string, origin time.Time, unit time.Duration) (Trajectory, bool) {
	if unit <= 0 {
		unit = DefaultStepUnit
	}

	matched := make([]Record, 0)
	for _, r := range s.records {
		if r.ModelID == modelID && r.BaseTime.Equal(origin) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return Trajectory{}, false
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Step < matched[j].Step })

	base := matched[0].BaseTime
	points := make([]TrajectoryPoint, len(matched))
	for i, r := range matched {
		points[i] = TrajectoryPoint{
			Step:       r.Step,
			Time:       project(base, r.Step-1, unit),
			Prediction: r.Prediction,
		}
	}

	return Trajectory{ModelID: modelID, Origin: base, Points: points}, true
}

// project returns base + n*unit, adding in chunks so the product never
// overflows a time.Duration.
func project(base time.Time, n int, unit time.Duration) time.Time {
	maxChunk := int64(math.MaxInt64 / unit)
	t := base
	for left := int64(n); left > 0; {
		chunk := min(left, maxChunk)
		t = t.Add(time.Duration(chunk) * unit)
		left -= chunk
	}
	return t
}
