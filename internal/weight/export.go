package weight

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ExportVersion is the version written into export documents.
const ExportVersion = 0

// ExportFilename is the suggested download name for an export document.
const ExportFilename = "weight_data_export.json"

// Setting is one entry of the export's settings list.
type Setting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Export is the downloadable document holding the override set. Its shape
// matches the static base file so an export can be served as base data.
type Export struct {
	Version  int       `json:"version"`
	Settings []Setting `json:"settings"`
	Weights  []Sample  `json:"weights"`
}

// DefaultSettings returns the settings written by a fresh export.
func DefaultSettings() []Setting {
	return []Setting{{Key: "goal"}}
}

// NewExport wraps overrides in an export document. Samples keep their order
// and exact timestamps.
func NewExport(overrides []Sample) Export {
	weights := make([]Sample, len(overrides))
	copy(weights, overrides)
	return Export{
		Version:  ExportVersion,
		Settings: DefaultSettings(),
		Weights:  weights,
	}
}

// EncodeExport writes e as indented JSON.
func EncodeExport(w io.Writer, e Export) error {
	if e.Settings == nil {
		e.Settings = []Setting{}
	}
	if e.Weights == nil {
		e.Weights = []Sample{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// DecodeExport reads an export document. A missing or non-array weights
// field is a *LoadError.
func DecodeExport(r io.Reader) (Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Export{}, &LoadError{Source: "import", Err: err}
	}
	var doc struct {
		Version  int             `json:"version"`
		Settings []Setting       `json:"settings"`
		Weights  json.RawMessage `json:"weights"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Export{}, &LoadError{Source: "import", Err: fmt.Errorf("malformed export: %w", err)}
	}
	weights, err := decodeSampleArray(doc.Weights)
	if err != nil {
		return Export{}, &LoadError{Source: "import", Err: err}
	}
	return Export{Version: doc.Version, Settings: doc.Settings, Weights: weights}, nil
}

// WriteCSV writes samples as a "Date,Weight" table with YYYY-MM-DD dates.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Weight"}); err != nil {
		return err
	}
	for _, s := range samples {
		record := []string{s.Key().String(), strconv.FormatFloat(s.Weight, 'f', -1, 64)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
