package weight

import (
	"encoding/json"
	"math"
	"time"
)

// WindowSpanDays is the number of calendar days shown by the default view
// window, roughly one tracking cycle.
const WindowSpanDays = 26

// Range is an inclusive value-axis range.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Window is an inclusive time-axis range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	}{w.Start.UnixMilli(), w.End.UnixMilli()})
}

// PanLimits bound how far the chart may be panned. Span is both the minimum
// and maximum visible range.
type PanLimits struct {
	Min  time.Time
	Max  time.Time
	Span time.Duration
}

func (p PanLimits) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min    int64 `json:"min"`
		Max    int64 `json:"max"`
		SpanMs int64 `json:"spanMs"`
	}{p.Min.UnixMilli(), p.Max.UnixMilli(), p.Span.Milliseconds()})
}

// ValueRange pads the weight extent by 10% of its range (at least 0.5) and
// rounds outward to whole numbers. ok is false for an empty series, in which
// case the chart should auto-range.
func ValueRange(s Series) (Range, bool) {
	if len(s) == 0 {
		return Range{}, false
	}
	lo, hi := s[0].Weight, s[0].Weight
	for _, sample := range s[1:] {
		lo = math.Min(lo, sample.Weight)
		hi = math.Max(hi, sample.Weight)
	}
	padding := math.Max(0.5, (hi-lo)*0.1)
	return Range{
		Low:  math.Floor(lo - padding),
		High: math.Ceil(hi + padding),
	}, true
}

// AnchorOf returns the later of today and the last sample's day, so the
// default window always includes the present even when the data is stale.
func AnchorOf(s Series, now time.Time) time.Time {
	anchor := Normalize(now)
	if len(s) > 0 {
		if last := Normalize(s[len(s)-1].Date); last.After(anchor) {
			anchor = last
		}
	}
	return anchor
}

// DefaultWindow returns [anchor - 25 days, anchor].
func DefaultWindow(anchor time.Time) Window {
	end := Normalize(anchor)
	return Window{
		Start: end.AddDate(0, 0, -(WindowSpanDays - 1)),
		End:   end,
	}
}

// LatestWindow anchors the default window on the latest sample, ignoring
// today.
func LatestWindow(s Series) (Window, bool) {
	if len(s) == 0 {
		return Window{}, false
	}
	return DefaultWindow(s[len(s)-1].Date), true
}

// PanLimitsOf extends the editing bounds to whole days: from the start of
// the first day to the end of the last one.
func PanLimitsOf(s Series, now time.Time) (PanLimits, bool) {
	minDay, maxDay, ok := s.BoundsOf(now)
	if !ok {
		return PanLimits{}, false
	}
	return panLimits(minDay, maxDay), true
}

func panLimits(minDay, maxDay time.Time) PanLimits {
	return PanLimits{
		Min:  StartOfDay(minDay),
		Max:  StartOfDay(maxDay).AddDate(0, 0, 1),
		Span: WindowSpanDays * Day,
	}
}
