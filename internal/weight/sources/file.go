package sources

import (
	"context"
	"os"

	"github.com/i474232898/weight-tracker/internal/weight"
)

// FileSource reads base data from a local JSON file in either the weights
// or the sheet shape.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func (s *FileSource) Fetch(ctx context.Context) ([]weight.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, &weight.LoadError{Source: s.Name(), Err: err}
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &weight.LoadError{Source: s.Name(), Err: err}
	}
	defer f.Close()

	return weight.Decode(f, weight.FormatAuto, s.Name())
}
