package weight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Bounds is the allowable editing range of the series.
type Bounds struct {
	Min time.Time
	Max time.Time
}

func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min string `json:"min"`
		Max string `json:"max"`
	}{KeyOf(b.Min).String(), KeyOf(b.Max).String()})
}

// View is everything the chart needs to render the current series.
type View struct {
	Weights    Series    `json:"weights"`
	Bounds     Bounds    `json:"bounds"`
	Window     Window    `json:"window"`
	ValueRange *Range    `json:"valueRange,omitempty"`
	PanLimits  PanLimits `json:"panLimits"`
	Warnings   []string  `json:"warnings,omitempty"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// Service owns the series of one session: the base data from a Source, the
// overrides from an OverrideStore and the merged Series derived from both.
type Service struct {
	source    Source
	overrides OverrideStore
	clock     Clock

	mu       sync.RWMutex
	loaded   bool
	loadErr  error
	loadedAt time.Time
	base     []Sample // payload order, row positions for Writer
	userData []Sample // insertion order, as persisted
	series   Series
	warnings []string
}

// NewService creates a new Service. A nil clock reads the system clock.
func NewService(source Source, overrides OverrideStore, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		source:    source,
		overrides: overrides,
		clock:     clock,
	}
}

// Load fetches the base data, reads the overrides and publishes the merged
// series. A failed fetch keeps whatever was published before; a failed
// override read falls back to no overrides and is kept as a warning.
func (s *Service) Load(ctx context.Context) error {
	if s.source == nil {
		return &LoadError{Err: errors.New("no weight source configured")}
	}

	base, err := s.source.Fetch(ctx)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Source: s.source.Name(), Err: err}
		}
		log.Printf("ERROR: %v", err)
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return err
	}

	// Overrides are read under the lock so an Upsert or Import cannot land
	// between the read and the publish and then be overwritten.
	s.mu.Lock()
	defer s.mu.Unlock()

	var warnings []string
	userData, err := s.readOverrides()
	if err != nil {
		log.Printf("WARN: %v; continuing without local overrides", err)
		warnings = append(warnings, fmt.Sprintf("local data could not be read: %v", err))
		userData = nil
	}

	series := Merge(base, userData)

	s.base = base
	s.userData = userData
	s.series = series
	s.warnings = warnings
	s.loaded = true
	s.loadErr = nil
	s.loadedAt = s.clock.Now()

	log.Printf("INFO: loaded %d base samples and %d overrides from %s (%d days)",
		len(base), len(userData), s.source.Name(), len(series))
	return nil
}

// Reload refreshes the base data. When it fails after an earlier successful
// load, the last good series stays visible.
func (s *Service) Reload(ctx context.Context) error {
	err := s.Load(ctx)
	if err != nil && s.Loaded() {
		log.Printf("INFO: reload failed; keeping last good series")
	}
	return err
}

// Loaded reports whether a series has been published.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Service) readOverrides() ([]Sample, error) {
	if s.overrides == nil {
		return nil, nil
	}
	samples, err := s.overrides.Load()
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Op: "load", Err: err}
		}
		return nil, err
	}
	return samples, nil
}

// View returns the published series with its derived ranges. Before the
// first successful load it returns the load error, or ErrNotLoaded.
func (s *Service) View() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		if s.loadErr != nil {
			return View{}, s.loadErr
		}
		return View{}, ErrNotLoaded
	}
	return s.viewLocked(nil), nil
}

func (s *Service) viewLocked(extra []string) View {
	now := s.clock.Now()

	v := View{
		Weights:  append(Series{}, s.series...),
		Window:   DefaultWindow(AnchorOf(s.series, now)),
		LoadedAt: s.loadedAt,
	}

	if minDay, maxDay, ok := s.series.BoundsOf(now); ok {
		v.Bounds = Bounds{Min: minDay, Max: maxDay}
	} else {
		today := Normalize(now)
		v.Bounds = Bounds{Min: today, Max: today}
	}

	if r, ok := ValueRange(s.series); ok {
		v.ValueRange = &r
	}

	v.PanLimits = panLimits(v.Bounds.Min, v.Bounds.Max)

	v.Warnings = append(append([]string{}, s.warnings...), extra...)
	return v
}

// Upsert records weight for day as an override, persists the override set
// and, when the source accepts writes, pushes the sample upstream. Storage
// and upstream failures are returned as warnings on the view; only invalid
// input fails the call.
func (s *Service) Upsert(ctx context.Context, day time.Time, weight float64) (View, error) {
	sample, row, warnings, err := s.commitUpsert(day, weight)
	if err != nil {
		return View{}, err
	}

	// The upstream write may retry over the network; readers are not held up.
	if w, ok := s.source.(Writer); ok {
		if err := s.pushUpstream(ctx, w, sample, row); err != nil {
			log.Printf("WARN: upstream write to %s failed: %v", s.source.Name(), err)
			warnings = append(warnings, fmt.Sprintf("sample kept locally; %s was not updated: %v", s.source.Name(), err))
		}
	}

	log.Printf("INFO: recorded %.1f kg for %s", weight, sample.Key())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(warnings), nil
}

// commitUpsert applies the sample to the overrides and the series and saves
// the overrides. It returns the base row holding the sample's day, 0 if none.
func (s *Service) commitUpsert(day time.Time, weight float64) (Sample, int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return Sample{}, 0, nil, ErrNotLoaded
	}

	series, err := s.series.Upsert(day, weight)
	if err != nil {
		return Sample{}, 0, nil, err
	}

	sample := Sample{Date: Normalize(day), Weight: weight}
	userData := upsertOverride(s.userData, sample)

	var warnings []string
	if err := s.saveOverrides(userData); err != nil {
		warnings = append(warnings, err.Error())
	}

	s.userData = userData
	s.series = series

	row := 0
	for _, existing := range s.base {
		if existing.Key() == sample.Key() {
			row = existing.Row()
			break
		}
	}
	return sample, row, warnings, nil
}

// upsertOverride replaces the entry on sample's day or appends it, keeping
// the persisted order of the rest.
func upsertOverride(userData []Sample, sample Sample) []Sample {
	out := make([]Sample, len(userData), len(userData)+1)
	copy(out, userData)
	for i, existing := range out {
		if existing.Key() == sample.Key() {
			out[i] = sample
			return out
		}
	}
	return append(out, sample)
}

// pushUpstream rewrites row when the day already has one, otherwise appends,
// then records the result in the base samples.
func (s *Service) pushUpstream(ctx context.Context, w Writer, sample Sample, row int) error {
	if row > 0 {
		if err := w.Update(ctx, row, sample); err != nil {
			return err
		}
	} else if err := w.Append(ctx, sample); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = recordBase(s.base, sample)
	return nil
}

// recordBase returns base with sample on its day. An appended sample lands
// below the last known row.
func recordBase(base []Sample, sample Sample) []Sample {
	out := make([]Sample, len(base), len(base)+1)
	copy(out, base)

	lastRow := 0
	for i, existing := range out {
		if existing.Key() == sample.Key() {
			sample.row = existing.row
			out[i] = sample
			return out
		}
		if existing.row > lastRow {
			lastRow = existing.row
		}
	}
	if lastRow > 0 {
		sample.row = lastRow + 1
	}
	return append(out, sample)
}

func (s *Service) saveOverrides(userData []Sample) error {
	if s.overrides == nil {
		return nil
	}
	if err := s.overrides.Save(userData); err != nil {
		log.Printf("WARN: failed to save overrides: %v", err)
		return fmt.Errorf("failed to save data locally: %w", err)
	}
	return nil
}

// Export returns the current override set as an export document.
func (s *Service) Export() (Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.userData) == 0 {
		return Export{}, ErrNoOverrides
	}
	return NewExport(s.userData), nil
}

// Import replaces the override set with e's samples, keeping their order.
// Duplicate days inside e resolve to the last one when merged.
func (s *Service) Import(e Export) (View, error) {
	for i, sample := range e.Weights {
		if sample.Date.IsZero() {
			return View{}, &ValidationError{Field: fmt.Sprintf("weights[%d].date", i), Reason: "missing"}
		}
		if err := ValidateWeight(sample.Weight); err != nil {
			var ve *ValidationError
			errors.As(err, &ve)
			return View{}, &ValidationError{Field: fmt.Sprintf("weights[%d].weight", i), Reason: ve.Reason}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return View{}, ErrNotLoaded
	}

	userData := append([]Sample{}, e.Weights...)

	var warnings []string
	if err := s.saveOverrides(userData); err != nil {
		warnings = append(warnings, err.Error())
	}

	s.userData = userData
	s.series = Merge(s.base, userData)

	log.Printf("INFO: imported %d overrides", len(userData))
	return s.viewLocked(warnings), nil
}

// LatestWindow returns the default-size window ending on the latest sample.
func (s *Service) LatestWindow() (Window, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return Window{}, false, ErrNotLoaded
	}
	w, ok := LatestWindow(s.series)
	return w, ok, nil
}

// Samples returns a copy of the published series.
func (s *Service) Samples() (Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}
	return append(Series{}, s.series...), nil
}
