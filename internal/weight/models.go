package weight

import (
	"encoding/json"
	"math"
	"time"
)

// MaxWeight is the upper bound (inclusive) of an accepted weight in kg.
const MaxWeight = 500.0

// Sample is one (day, weight) observation.
type Sample struct {
	Date   time.Time
	Weight float64

	// row is the 1-based position of the sample in its source sheet, 0 when
	// the source has no rows.
	row int
}

// sampleJSON is the wire shape shared by every source, store and export:
// the date is an epoch-millisecond integer.
type sampleJSON struct {
	Date   *int64   `json:"date"`
	Weight *float64 `json:"weight"`
}

// Key returns the calendar day the sample belongs to.
func (s Sample) Key() DayKey { return KeyOf(s.Date) }

// Row returns the source row the sample was decoded from, or 0 when unknown.
func (s Sample) Row() int { return s.row }

func (s Sample) normalized() Sample {
	return Sample{Date: Normalize(s.Date), Weight: s.Weight}
}

func (s Sample) MarshalJSON() ([]byte, error) {
	ms := s.Date.UnixMilli()
	w := s.Weight
	return json.Marshal(sampleJSON{Date: &ms, Weight: &w})
}

// UnmarshalJSON rejects entries without a date or weight instead of
// defaulting them to zero.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Date == nil {
		return &ValidationError{Field: "date", Reason: "missing"}
	}
	if raw.Weight == nil {
		return &ValidationError{Field: "weight", Reason: "missing"}
	}
	s.Date = time.UnixMilli(*raw.Date).UTC()
	s.Weight = *raw.Weight
	return nil
}

// ValidateWeight checks that w is a finite number in (0, MaxWeight].
func ValidateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return &ValidationError{Field: "weight", Reason: "must be a finite number"}
	}
	if w <= 0 || w > MaxWeight {
		return &ValidationError{Field: "weight", Reason: "must be between 0 and 500 kg"}
	}
	return nil
}
