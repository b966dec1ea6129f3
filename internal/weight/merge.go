package weight

import "sort"

// Merge combines base samples with override samples into a Series.
// Samples are keyed by calendar day: all of base is inserted first, then all
// of overrides, and a later insertion replaces an earlier one. Duplicate days
// inside a single input therefore collapse to the last one in slice order.
// The result is sorted ascending and every sample is normalized to noon UTC.
func Merge(base, overrides []Sample) Series {
	byDay := make(map[DayKey]Sample, len(base)+len(overrides))
	for _, s := range base {
		byDay[s.Key()] = s.normalized()
	}
	for _, s := range overrides {
		byDay[s.Key()] = s.normalized()
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	out := make(Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, byDay[DayKey(k)])
	}
	return out
}
