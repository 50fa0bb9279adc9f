package forecast

import (
	"sort"
	"time"
)

// Subset is a filtered working set of records. It owns its slice and never
// aliases the Store it was cut from.
type Subset struct {
	modelID string
	records []Record
}

// Filter keeps the records of modelID whose base time lies in [start, end].
// An inverted range yields an empty subset.
func (s *Store) Filter(modelID string, start, end time.Time) Subset {
	out := Subset{modelID: modelID}
	if s.Len() == 0 || start.After(end) {
		return out
	}

	lo := sort.Search(len(s.records), func(i int) bool {
		r := s.records[i]
		if r.ModelID != modelID {
			return r.ModelID > modelID
		}
		return !r.BaseTime.Before(start)
	})
	hi := sort.Search(len(s.records), func(i int) bool {
		r := s.records[i]
		if r.ModelID != modelID {
			return r.ModelID > modelID
		}
		return r.BaseTime.After(end)
	})
	if lo >= hi {
		return out
	}

	out.records = make([]Record, hi-lo)
	copy(out.records, s.records[lo:hi])
	return out
}

// ModelID is the model the subset was filtered for.
func (s Subset) ModelID() string { return s.modelID }

// Len returns the number of records in the subset.
func (s Subset) Len() int { return len(s.records) }

// Records returns a copy of the subset's records.
func (s Subset) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
