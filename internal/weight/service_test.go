package weight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	samples []Sample
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) ([]Sample, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]Sample{}, f.samples...), nil
}

type writableSource struct {
	fakeSource
	appended []Sample
	updated  map[int]Sample
	writeErr error
}

func (w *writableSource) Append(_ context.Context, s Sample) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.appended = append(w.appended, s)
	return nil
}

func (w *writableSource) Update(_ context.Context, row int, s Sample) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	if w.updated == nil {
		w.updated = make(map[int]Sample)
	}
	w.updated[row] = s
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	samples []Sample
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeStore) Load() ([]Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]Sample{}, f.samples...), nil
}

func (f *fakeStore) Save(samples []Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.samples = append([]Sample{}, samples...)
	return nil
}

var today = FixedClock{T: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}

func TestServiceLoadMergesOverrides(t *testing.T) {
	src := &fakeSource{samples: []Sample{
		sample(2024, 2, 1, 72),
		sample(2024, 1, 31, 72.5),
	}}
	st := &fakeStore{samples: []Sample{sample(2024, 2, 1, 71.8)}}

	svc := NewService(src, st, today)
	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.View()
	require.NoError(t, err)

	assert.Equal(t, Series{sample(2024, 1, 31, 72.5), sample(2024, 2, 1, 71.8)}, view.Weights)
	assert.Equal(t, Bounds{Min: day(2024, 1, 31), Max: day(2024, 3, 10)}, view.Bounds)
	assert.Equal(t, Window{Start: day(2024, 2, 14), End: day(2024, 3, 10)}, view.Window)
	require.NotNil(t, view.ValueRange)
	assert.Equal(t, Range{Low: 71, High: 73}, *view.ValueRange)
	assert.Empty(t, view.Warnings)
}

func TestServiceViewBeforeLoad(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, today)
	_, err := svc.View()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestServiceLoadErrorBlocks(t *testing.T) {
	svc := NewService(&fakeSource{err: errors.New("connection refused")}, &fakeStore{}, today)

	err := svc.Load(context.Background())
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "fake", le.Source)

	_, err = svc.View()
	assert.ErrorAs(t, err, &le)
}

func TestServiceReloadKeepsLastGoodSeries(t *testing.T) {
	src := &fakeSource{samples: []Sample{sample(2024, 3, 1, 70)}}
	svc := NewService(src, &fakeStore{}, today)
	require.NoError(t, svc.Load(context.Background()))

	src.err = errors.New("timeout")
	require.Error(t, svc.Reload(context.Background()))

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Series{sample(2024, 3, 1, 70)}, view.Weights)
}

func TestServiceCorruptOverridesFallBackToEmpty(t *testing.T) {
	st := &fakeStore{loadErr: &PersistenceError{Op: "load", Err: errors.New("unexpected end of JSON input")}}
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 3, 1, 70)}}, st, today)

	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Series{sample(2024, 3, 1, 70)}, view.Weights)
	require.Len(t, view.Warnings, 1)
	assert.Contains(t, view.Warnings[0], "unexpected end of JSON input")
}

func TestServiceEmptySeriesFallbacks(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, today)
	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Bounds{Min: day(2024, 3, 10), Max: day(2024, 3, 10)}, view.Bounds)
	assert.Nil(t, view.ValueRange)
	assert.Equal(t, Series{}, view.Weights)
}

func TestServiceUpsertPersistsOverrides(t *testing.T) {
	st := &fakeStore{samples: []Sample{sample(2024, 3, 1, 70)}}
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 3, 2, 71)}}, st, today)
	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.Upsert(context.Background(), day(2024, 3, 5), 69.5)
	require.NoError(t, err)
	assert.Empty(t, view.Warnings)
	assert.Equal(t, Series{
		sample(2024, 3, 1, 70),
		sample(2024, 3, 2, 71),
		sample(2024, 3, 5, 69.5),
	}, view.Weights)

	_, err = svc.Upsert(context.Background(), time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), 69.9)
	require.NoError(t, err)

	assert.Equal(t, []Sample{sample(2024, 3, 1, 69.9), sample(2024, 3, 5, 69.5)}, st.samples)
}

func TestServiceUpsertValidation(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 3, 2, 71)}}, st, today)
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Upsert(context.Background(), day(2024, 3, 5), 501)
	assert.True(t, IsValidation(err))
	assert.Zero(t, st.saves)

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Series{sample(2024, 3, 2, 71)}, view.Weights)
}

func TestServiceUpsertSaveFailureIsWarning(t *testing.T) {
	st := &fakeStore{saveErr: &PersistenceError{Op: "save", Err: errors.New("quota exceeded")}}
	svc := NewService(&fakeSource{}, st, today)
	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.Upsert(context.Background(), day(2024, 3, 5), 70)
	require.NoError(t, err)
	require.Len(t, view.Warnings, 1)
	assert.Contains(t, view.Warnings[0], "quota exceeded")
	assert.Equal(t, Series{sample(2024, 3, 5, 70)}, view.Weights)
}

func TestServiceUpsertBeforeLoad(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, today)
	_, err := svc.Upsert(context.Background(), day(2024, 3, 5), 70)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestServiceUpsertWritesUpstream(t *testing.T) {
	// Row 3 of the sheet is blank, so 2024-03-01 lives on row 4.
	src := &writableSource{fakeSource: fakeSource{samples: []Sample{
		onRow(sample(2024, 3, 2, 71), 2),
		onRow(sample(2024, 3, 1, 72), 4),
	}}}
	svc := NewService(src, &fakeStore{}, today)
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Upsert(context.Background(), day(2024, 3, 1), 71.5)
	require.NoError(t, err)
	_, err = svc.Upsert(context.Background(), day(2024, 3, 3), 71)
	require.NoError(t, err)
	_, err = svc.Upsert(context.Background(), day(2024, 3, 3), 70.8)
	require.NoError(t, err)

	assert.Equal(t, map[int]Sample{
		4: sample(2024, 3, 1, 71.5),
		5: sample(2024, 3, 3, 70.8),
	}, src.updated)
	assert.Equal(t, []Sample{sample(2024, 3, 3, 71)}, src.appended)
}

func TestServiceUpstreamFailureIsWarning(t *testing.T) {
	src := &writableSource{writeErr: errors.New("circuit breaker open")}
	st := &fakeStore{}
	svc := NewService(src, st, today)
	require.NoError(t, svc.Load(context.Background()))

	view, err := svc.Upsert(context.Background(), day(2024, 3, 3), 71)
	require.NoError(t, err)
	require.Len(t, view.Warnings, 1)
	assert.Contains(t, view.Warnings[0], "circuit breaker open")
	assert.Len(t, st.samples, 1)
}

func TestServiceExportImport(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 3, 1, 72)}}, st, today)
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Export()
	assert.ErrorIs(t, err, ErrNoOverrides)

	_, err = svc.Upsert(context.Background(), day(2024, 3, 4), 70)
	require.NoError(t, err)

	exp, err := svc.Export()
	require.NoError(t, err)
	assert.Equal(t, ExportVersion, exp.Version)
	assert.Equal(t, []Sample{sample(2024, 3, 4, 70)}, exp.Weights)

	view, err := svc.Import(Export{Weights: []Sample{
		sample(2024, 3, 1, 71),
		sample(2024, 3, 2, 70.8),
		sample(2024, 3, 2, 70.6),
	}})
	require.NoError(t, err)
	assert.Equal(t, Series{sample(2024, 3, 1, 71), sample(2024, 3, 2, 70.6)}, view.Weights)
	assert.Len(t, st.samples, 3)

	_, err = svc.Import(Export{Weights: []Sample{sample(2024, 3, 1, -3)}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "weights[0].weight", ve.Field)
}

func TestServiceLatestWindow(t *testing.T) {
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 2, 1, 72)}}, nil, today)

	_, _, err := svc.LatestWindow()
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, svc.Load(context.Background()))
	w, ok, err := svc.LatestWindow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(2024, 2, 1), w.End)
}

// gatedStore blocks the first Load after arm until release is closed.
type gatedStore struct {
	fakeStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Load() ([]Sample, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.fakeStore.Load()
}

func (g *gatedStore) saved() []Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Sample{}, g.samples...)
}

func TestServiceReloadKeepsConcurrentUpsert(t *testing.T) {
	ctx := context.Background()
	st := newGatedStore()
	svc := NewService(&fakeSource{samples: []Sample{sample(2024, 3, 1, 71)}}, st, today)
	require.NoError(t, svc.Load(ctx))

	st.armed.Store(true)
	reloaded := make(chan error, 1)
	go func() { reloaded <- svc.Reload(ctx) }()
	<-st.entered

	upserted := make(chan error, 1)
	go func() {
		_, err := svc.Upsert(ctx, day(2024, 3, 5), 70.5)
		upserted <- err
	}()

	close(st.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-upserted)

	_, err := svc.Upsert(ctx, day(2024, 3, 6), 72)
	require.NoError(t, err)

	assert.Equal(t, []Sample{sample(2024, 3, 5, 70.5), sample(2024, 3, 6, 72)}, st.saved())

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Series{
		sample(2024, 3, 1, 71),
		sample(2024, 3, 5, 70.5),
		sample(2024, 3, 6, 72),
	}, view.Weights)
}

func TestServiceReloadKeepsConcurrentImport(t *testing.T) {
	ctx := context.Background()
	st := newGatedStore()
	svc := NewService(&fakeSource{}, st, today)
	require.NoError(t, svc.Load(ctx))

	st.armed.Store(true)
	reloaded := make(chan error, 1)
	go func() { reloaded <- svc.Reload(ctx) }()
	<-st.entered

	imported := make(chan error, 1)
	go func() {
		_, err := svc.Import(Export{Weights: []Sample{sample(2024, 3, 2, 70)}})
		imported <- err
	}()

	close(st.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-imported)

	exp, err := svc.Export()
	require.NoError(t, err)
	assert.Equal(t, []Sample{sample(2024, 3, 2, 70)}, exp.Weights)
	assert.Equal(t, exp.Weights, st.saved())
}

// slowWriter blocks Append until release is closed.
type slowWriter struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
}

func (w *slowWriter) Append(context.Context, Sample) error {
	close(w.entered)
	<-w.release
	return nil
}

func (w *slowWriter) Update(context.Context, int, Sample) error { return nil }

func TestServiceUpstreamWriteDoesNotBlockReaders(t *testing.T) {
	ctx := context.Background()
	src := &slowWriter{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(src, &fakeStore{}, today)
	require.NoError(t, svc.Load(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Upsert(ctx, day(2024, 3, 5), 70)
		done <- err
	}()
	<-src.entered

	view, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, Series{sample(2024, 3, 5, 70)}, view.Weights)

	close(src.release)
	require.NoError(t, <-done)
}
