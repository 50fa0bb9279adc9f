package forecast

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Record is one row of a forecast table: the prediction a model issued at
// BaseTime for Step units ahead.
type Record struct {
	ModelID    string
	BaseTime   time.Time
	Step       int
	Prediction float64
	// Actual is the realised value at BaseTime. Only meaningful on step 1 rows.
	Actual    float64
	HasActual bool
}

type recordKey struct {
	model string
	base  int64
	step  int
}

func keyOf(r Record) recordKey {
	return recordKey{model: r.ModelID, base: r.BaseTime.UnixNano(), step: r.Step}
}

// Store is an immutable snapshot of forecast records. Records are held sorted
// by model, base time and step; (model, base time, step) is unique.
type Store struct {
	records     []Record
	models      []string
	dropped     int
	fingerprint uint64
}

// NewStore copies records into a new snapshot. Rows with a step below one and
// repeated (model, base time, step) keys are dropped; the first occurrence wins.
func NewStore(records []Record) *Store {
	seen := make(map[recordKey]struct{}, len(records))
	kept := make([]Record, 0, len(records))
	dropped := 0

	for _, r := range records {
		if r.Step < 1 {
			dropped++
			continue
		}
		r.BaseTime = r.BaseTime.UTC()
		k := keyOf(r)
		if _, dup := seen[k]; dup {
			dropped++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return lessRecord(kept[i], kept[j])
	})

	models := make([]string, 0)
	for i, r := range kept {
		if i == 0 || kept[i-1].ModelID != r.ModelID {
			models = append(models, r.ModelID)
		}
	}

	return &Store{
		records:     kept,
		models:      models,
		dropped:     dropped,
		fingerprint: fingerprint(kept),
	}
}

func lessRecord(a, b Record) bool {
	if a.ModelID != b.ModelID {
		return a.ModelID < b.ModelID
	}
	if !a.BaseTime.Equal(b.BaseTime) {
		return a.BaseTime.Before(b.BaseTime)
	}
	return a.Step < b.Step
}

func fingerprint(records []Record) uint64 {
	d := xxhash.New()
	buf := make([]byte, 8)
	for _, r := range records {
		_, _ = d.WriteString(r.ModelID)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf, uint64(r.BaseTime.UnixNano()))
		_, _ = d.Write(buf)
		binary.LittleEndian.PutUint64(buf, uint64(r.Step))
		_, _ = d.Write(buf)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(r.Prediction))
		_, _ = d.Write(buf)
		if r.HasActual {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(r.Actual))
			_, _ = d.Write([]byte{1})
			_, _ = d.Write(buf)
		} else {
			_, _ = d.Write([]byte{0})
		}
	}
	return d.Sum64()
}

// Len returns the number of records in the snapshot.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of every record, ordered by model, base time and step.
func (s *Store) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Models lists the distinct model identifiers in ascending order.
func (s *Store) Models() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.models))
	copy(out, s.models)
	return out
}

// Dropped reports how many input rows NewStore discarded.
func (s *Store) Dropped() int {
	if s == nil {
		return 0
	}
	return s.dropped
}

// Fingerprint identifies the snapshot contents.
func (s *Store) Fingerprint() uint64 {
	if s == nil {
		return 0
	}
	return s.fingerprint
}

// Bounds returns the earliest and latest base time across all models.
func (s *Store) Bounds() (time.Time, time.Time, bool) {
	if s.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last := s.records[0].BaseTime, s.records[0].BaseTime
	for _, r := range s.records[1:] {
		if r.BaseTime.Before(first) {
			first = r.BaseTime
		}
		if r.BaseTime.After(last) {
			last = r.BaseTime
		}
	}
	return first, last, true
}
