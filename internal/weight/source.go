package weight

import "context"

// OverrideKey is the fixed key under which overrides are persisted.
const OverrideKey = "viktis_user_data"

// Source abstracts where the base series comes from (static file,
// spreadsheet API, local file).
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Sample, error)
}

// Writer is implemented by sources that accept new samples. row is the
// value of Sample.Row for the sample being replaced.
type Writer interface {
	Append(ctx context.Context, s Sample) error
	Update(ctx context.Context, row int, s Sample) error
}

// OverrideStore persists the locally recorded samples. Failures are
// reported as *PersistenceError.
type OverrideStore interface {
	Load() ([]Sample, error)
	Save(samples []Sample) error
}
