package weight

import "time"

// Series is a sequence of samples, unique by calendar day and sorted
// ascending. Build one with Merge; every method returns a new Series and
// leaves the receiver untouched.
type Series []Sample

// Upsert sets the weight recorded for day. An existing sample on the same
// calendar day is replaced, otherwise the sample is inserted in order.
// Invalid input returns a *ValidationError along with the unchanged receiver.
func (s Series) Upsert(day time.Time, weight float64) (Series, error) {
	if day.IsZero() {
		return s, &ValidationError{Field: "date", Reason: "missing"}
	}
	if err := ValidateWeight(weight); err != nil {
		return s, err
	}
	return Merge(s, []Sample{{Date: day, Weight: weight}}), nil
}

// BoundsOf returns the allowable editing range: the first sample's day and
// the later of today and the last sample's day. ok is false for an empty
// series; callers fall back to today/today.
func (s Series) BoundsOf(now time.Time) (minDay, maxDay time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	minDay = Normalize(s[0].Date)
	maxDay = Normalize(s[len(s)-1].Date)
	if today := Normalize(now); today.After(maxDay) {
		maxDay = today
	}
	return minDay, maxDay, true
}

// Weights projects the series onto its weight values.
func (s Series) Weights() []float64 {
	out := make([]float64, len(s))
	for i, sample := range s {
		out[i] = sample.Weight
	}
	return out
}

// Find returns the index of the sample recorded on day's calendar day.
func (s Series) Find(day time.Time) (int, bool) {
	key := KeyOf(day)
	for i, sample := range s {
		if sample.Key() == key {
			return i, true
		}
	}
	return -1, false
}
