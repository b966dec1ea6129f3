package weight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format selects the payload shape a source delivers.
type Format int

const (
	// FormatAuto detects the shape from the payload.
	FormatAuto Format = iota
	// FormatWeights is the static file shape: {"weights":[{date,weight}...]}.
	FormatWeights
	// FormatSheet is the spreadsheet shape: {"values":[["Date","Weight"],...]}
	// or a bare array of rows.
	FormatSheet
)

func (f Format) String() string {
	switch f {
	case FormatWeights:
		return "weights"
	case FormatSheet:
		return "sheet"
	default:
		return "auto"
	}
}

var (
	errNoWeightsArray = errors.New("invalid data format: weights array not found")
	errNoValuesArray  = errors.New("invalid data format: values array not found")
)

// Decode reads a base payload and returns its samples in payload order.
// Every failure is a *LoadError naming source; no partial result is
// returned.
func Decode(r io.Reader, format Format, source string) ([]Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	samples, err := decodeBytes(data, format)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return samples, nil
}

func decodeBytes(data []byte, format Format) ([]Sample, error) {
	switch format {
	case FormatWeights:
		return decodeWeights(data)
	case FormatSheet:
		return decodeSheet(data)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe["weights"]; ok {
			return decodeWeights(data)
		}
	}
	return decodeSheet(data)
}

func decodeWeights(data []byte) ([]Sample, error) {
	var payload struct {
		Weights json.RawMessage `json:"weights"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	return decodeSampleArray(payload.Weights)
}

// decodeSampleArray requires raw to be a JSON array of {date,weight}.
func decodeSampleArray(raw json.RawMessage) ([]Sample, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNoWeightsArray
	}
	var samples []Sample
	if err := json.Unmarshal(trimmed, &samples); err != nil {
		return nil, fmt.Errorf("malformed weights entry: %w", err)
	}
	if samples == nil {
		samples = []Sample{}
	}
	return samples, nil
}

func decodeSheet(data []byte) ([]Sample, error) {
	trimmed := bytes.TrimSpace(data)
	rowsRaw := json.RawMessage(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload struct {
			Values json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("malformed payload: %w", err)
		}
		rowsRaw = bytes.TrimSpace(payload.Values)
	}
	if len(rowsRaw) == 0 || rowsRaw[0] != '[' {
		return nil, errNoValuesArray
	}

	var rows [][]any
	if err := json.Unmarshal(rowsRaw, &rows); err != nil {
		return nil, fmt.Errorf("malformed rows: %w", err)
	}

	// Row i of the array is sheet row i+1; blank rows are skipped but keep
	// their place so later rows still point at the right sheet row.
	samples := make([]Sample, 0, len(rows))
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if i == 0 && isHeaderRow(row) {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected date and weight", i+1)
		}
		day, err := parseSheetDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		w, err := parseSheetWeight(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		samples = append(samples, Sample{Date: day, Weight: w, row: i + 1})
	}
	return samples, nil
}

// isHeaderRow reports whether the first cell is something other than a date.
func isHeaderRow(row []any) bool {
	if len(row) == 0 {
		return false
	}
	_, err := parseSheetDate(row[0])
	return err != nil
}

func isBlankRow(row []any) bool {
	for _, cell := range row {
		switch v := cell.(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func parseSheetDate(cell any) (time.Time, error) {
	switch v := cell.(type) {
	case string:
		return ParseDay(v)
	case float64:
		return Normalize(time.UnixMilli(int64(v))), nil
	default:
		return time.Time{}, &ValidationError{Field: "date", Reason: "missing"}
	}
}

func parseSheetWeight(cell any) (float64, error) {
	switch v := cell.(type) {
	case float64:
		return v, nil
	case string:
		// Spreadsheets in some locales use a decimal comma.
		w, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			return 0, &ValidationError{Field: "weight", Reason: fmt.Sprintf("%q is not a number", v)}
		}
		return w, nil
	default:
		return 0, &ValidationError{Field: "weight", Reason: "missing"}
	}
}
