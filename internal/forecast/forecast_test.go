package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func scenarioStore() *Store {
	return NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 10.0},
		{ModelID: "A", BaseTime: at(0), Step: 2, Prediction: 10.5},
		{ModelID: "A", BaseTime: at(1), Step: 1, Prediction: 11.0},
	})
}

func TestScenarioPipeline(t *testing.T) {
	store := scenarioStore()

	subset := store.Filter("A", at(0), at(1))
	require.Equal(t, 3, subset.Len())

	points := Aggregate(subset)
	require.Len(t, points, 2)
	assert.True(t, points[0].BaseTime.Equal(at(0)))
	assert.Equal(t, 10.0, points[0].Prediction)
	assert.Equal(t, []Horizon{{Step: 1, Prediction: 10.0}, {Step: 2, Prediction: 10.5}}, points[0].Horizons)
	assert.True(t, points[1].BaseTime.Equal(at(1)))
	assert.Equal(t, 11.0, points[1].Prediction)
	assert.Equal(t, []Horizon{{Step: 1, Prediction: 11.0}}, points[1].Horizons)

	traj, ok := SelectTrajectory(subset, "A", at(0), time.Hour)
	require.True(t, ok)
	require.Len(t, traj.Points, 2)
	assert.True(t, traj.Points[0].Time.Equal(at(0)))
	assert.Equal(t, 10.0, traj.Points[0].Prediction)
	assert.True(t, traj.Points[1].Time.Equal(at(1)))
	assert.Equal(t, 10.5, traj.Points[1].Prediction)
	assert.False(t, traj.Singleton())

	single, ok := SelectTrajectory(subset, "A", at(1), time.Hour)
	require.True(t, ok)
	require.True(t, single.Singleton())
	assert.True(t, single.Points[0].Time.Equal(at(1)))
	assert.Equal(t, 11.0, single.Points[0].Prediction)

	_, ok = SelectTrajectory(subset, "A", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Hour)
	assert.False(t, ok)
}

func TestFilterPredicate(t *testing.T) {
	store := NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 1},
		{ModelID: "A", BaseTime: at(2), Step: 1, Prediction: 2},
		{ModelID: "A", BaseTime: at(4), Step: 1, Prediction: 3},
		{ModelID: "B", BaseTime: at(2), Step: 1, Prediction: 4},
		{ModelID: "C", BaseTime: at(2), Step: 1, Prediction: 5},
	})

	tests := []struct {
		name  string
		model string
		start time.Time
		end   time.Time
		want  int
	}{
		{"inclusive bounds", "A", at(0), at(4), 3},
		{"inner window", "A", at(1), at(3), 1},
		{"single instant", "A", at(2), at(2), 1},
		{"other model", "B", at(0), at(23), 1},
		{"unknown model", "Z", at(0), at(23), 0},
		{"inverted range", "A", at(4), at(0), 0},
		{"window before data", "A", at(0).Add(-48 * time.Hour), at(0).Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subset := store.Filter(tt.model, tt.start, tt.end)
			require.Equal(t, tt.want, subset.Len())
			for _, r := range subset.Records() {
				assert.Equal(t, tt.model, r.ModelID)
				assert.False(t, r.BaseTime.Before(tt.start))
				assert.False(t, r.BaseTime.After(tt.end))
			}
		})
	}
}

func TestFilterDoesNotAliasStore(t *testing.T) {
	store := scenarioStore()
	before := store.Records()

	subset := store.Filter("A", at(0), at(1))
	subset.records[0].Prediction = 999

	assert.Equal(t, before, store.Records())
}

func TestNewStoreDropsDuplicatesAndInvalidSteps(t *testing.T) {
	store := NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 1},
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 2},
		{ModelID: "A", BaseTime: at(0), Step: 0, Prediction: 3},
		{ModelID: "B", BaseTime: at(3), Step: 2, Prediction: 4},
	})

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, store.Dropped())
	assert.Equal(t, []string{"A", "B"}, store.Models())
	assert.Equal(t, 1.0, store.Records()[0].Prediction)

	first, last, ok := store.Bounds()
	require.True(t, ok)
	assert.True(t, first.Equal(at(0)))
	assert.True(t, last.Equal(at(3)))
}

func TestFingerprintTracksContent(t *testing.T) {
	a := scenarioStore()
	b := scenarioStore()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 10.0},
		{ModelID: "A", BaseTime: at(0), Step: 2, Prediction: 10.6},
		{ModelID: "A", BaseTime: at(1), Step: 1, Prediction: 11.0},
	})
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	var empty *Store
	assert.Zero(t, empty.Len())
	_, _, ok := empty.Bounds()
	assert.False(t, ok)
}

func TestAggregateSkipsBaseTimesWithoutStepOne(t *testing.T) {
	store := NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 2, Prediction: 5},
		{ModelID: "A", BaseTime: at(0), Step: 3, Prediction: 6},
		{ModelID: "A", BaseTime: at(1), Step: 1, Prediction: 7, Actual: 7.2, HasActual: true},
	})
	subset := store.Filter("A", at(0), at(1))

	points := Aggregate(subset)
	require.Len(t, points, 1)
	assert.True(t, points[0].BaseTime.Equal(at(1)))
	assert.True(t, points[0].HasActual)
	assert.Equal(t, 7.2, points[0].Actual)

	traj, ok := SelectTrajectory(subset, "A", at(0), time.Hour)
	require.True(t, ok)
	require.Len(t, traj.Points, 2)
	assert.Equal(t, 2, traj.Points[0].Step)
	assert.True(t, traj.Points[0].Time.Equal(at(1)))
	assert.True(t, traj.Points[1].Time.Equal(at(2)))
}

func TestAggregateOrderingAndDeterminism(t *testing.T) {
	subset := Subset{modelID: "A", records: []Record{
		{ModelID: "A", BaseTime: at(5), Step: 3, Prediction: 53},
		{ModelID: "A", BaseTime: at(2), Step: 1, Prediction: 21},
		{ModelID: "A", BaseTime: at(5), Step: 1, Prediction: 51},
		{ModelID: "A", BaseTime: at(5), Step: 2, Prediction: 52},
		{ModelID: "A", BaseTime: at(2), Step: 4, Prediction: 24},
	}}
	snapshot := subset.Records()

	first := Aggregate(subset)
	second := Aggregate(subset)
	require.Equal(t, first, second)
	assert.Equal(t, snapshot, subset.Records())

	require.Len(t, first, 2)
	assert.True(t, first[0].BaseTime.Before(first[1].BaseTime))
	for _, p := range first {
		steps := make(map[int]bool)
		for i, h := range p.Horizons {
			assert.False(t, steps[h.Step], "step %d repeated", h.Step)
			steps[h.Step] = true
			if i > 0 {
				assert.Less(t, p.Horizons[i-1].Step, h.Step)
			}
		}
	}
	assert.Equal(t, []Horizon{{1, 51}, {2, 52}, {3, 53}}, first[1].Horizons)
}

func TestAggregateEmptySubset(t *testing.T) {
	points := Aggregate(scenarioStore().Filter("A", at(1), at(0)))
	assert.Empty(t, points)
}

func TestSelectTrajectorySpacing(t *testing.T) {
	records := make([]Record, 0)
	for step := 1; step <= 6; step++ {
		records = append(records, Record{ModelID: "A", BaseTime: at(3), Step: step, Prediction: float64(step)})
	}
	subset := NewStore(records).Filter("A", at(0), at(23))

	traj, ok := SelectTrajectory(subset, "A", at(3), 15*time.Minute)
	require.True(t, ok)
	require.Len(t, traj.Points, 6)
	for i := 1; i < len(traj.Points); i++ {
		gap := traj.Points[i].Time.Sub(traj.Points[i-1].Time)
		assert.Equal(t, 15*time.Minute, gap)
	}

	again, _ := SelectTrajectory(subset, "A", at(3), 15*time.Minute)
	assert.Equal(t, traj, again)

	defaulted, _ := SelectTrajectory(subset, "A", at(3), 0)
	assert.True(t, defaulted.Points[5].Time.Equal(at(8)))
}

func TestSelectTrajectoryWrongModel(t *testing.T) {
	subset := scenarioStore().Filter("A", at(0), at(1))
	_, ok := SelectTrajectory(subset, "B", at(0), time.Hour)
	assert.False(t, ok)
}

func TestSelectTrajectoryMatchesOtherZones(t *testing.T) {
	subset := scenarioStore().Filter("A", at(0), at(1))
	local := at(0).In(time.FixedZone("UTC-3", -3*60*60))

	traj, ok := SelectTrajectory(subset, "A", local, time.Hour)
	require.True(t, ok)
	assert.Len(t, traj.Points, 2)
}

func TestSelectTrajectoryFarHorizonsStayOrdered(t *testing.T) {
	store := NewStore([]Record{
		{ModelID: "A", BaseTime: at(0), Step: 1, Prediction: 1},
		{ModelID: "A", BaseTime: at(0), Step: 3_000_000, Prediction: 2},
		{ModelID: "A", BaseTime: at(0), Step: 3_000_001, Prediction: 3},
	})

	traj, ok := SelectTrajectory(store.Filter("A", at(0), at(0)), "A", at(0), time.Hour)
	require.True(t, ok)
	require.Len(t, traj.Points, 3)

	assert.True(t, traj.Points[1].Time.Equal(at(0).AddDate(0, 0, 124_999).Add(23*time.Hour)))
	assert.True(t, traj.Points[2].Time.Equal(at(0).AddDate(0, 0, 125_000)))
	for i := 1; i < len(traj.Points); i++ {
		assert.True(t, traj.Points[i].Time.After(traj.Points[i-1].Time), "point %d not after its predecessor", i)
	}
}

func TestProjectLargeUnit(t *testing.T) {
	year := 365 * 24 * time.Hour
	assert.True(t, project(at(0), 1000, year).Equal(at(0).AddDate(0, 0, 365_000)))
	assert.True(t, project(at(0), 0, year).Equal(at(0)))
}
