package sources

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weight-tracker/internal/weight"
)

// SheetSource talks to a spreadsheet-backed web app exposing the actions
// getData, addData and updateData as query parameters.
type SheetSource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewSheetSource(client *http.Client, scriptURL string) *SheetSource {
	return &SheetSource{
		name:    "sheet",
		baseURL: scriptURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("sheet"),
	}
}

func (s *SheetSource) Name() string {
	return s.name
}

func (s *SheetSource) Fetch(ctx context.Context) ([]weight.Sample, error) {
	resp, err := s.call(ctx, url.Values{"action": {"getData"}})
	if err != nil {
		return nil, &weight.LoadError{Source: s.name, Err: err}
	}
	defer resp.Body.Close()

	return weight.Decode(resp.Body, weight.FormatSheet, s.name)
}

// Append adds a new row for the sample.
func (s *SheetSource) Append(ctx context.Context, sample weight.Sample) error {
	values := sampleValues(sample)
	values.Set("action", "addData")

	resp, err := s.call(ctx, values)
	if err != nil {
		return fmt.Errorf("addData: %w", err)
	}
	drain(resp)
	log.Printf("DEBUG: sheet row added for %s", sample.Key())
	return nil
}

// Update rewrites sheet row row, as reported by Sample.Row after Fetch.
func (s *SheetSource) Update(ctx context.Context, row int, sample weight.Sample) error {
	if row < 1 {
		return fmt.Errorf("updateData: invalid row %d", row)
	}
	values := sampleValues(sample)
	values.Set("action", "updateData")
	values.Set("row", strconv.Itoa(row))

	resp, err := s.call(ctx, values)
	if err != nil {
		return fmt.Errorf("updateData: %w", err)
	}
	drain(resp)
	log.Printf("DEBUG: sheet row %d updated for %s", row, sample.Key())
	return nil
}

func sampleValues(sample weight.Sample) url.Values {
	return url.Values{
		"date":   {sample.Key().String()},
		"weight": {strconv.FormatFloat(sample.Weight, 'f', -1, 64)},
	}
}

func (s *SheetSource) call(ctx context.Context, values url.Values) (*http.Response, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", s.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
	return doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
}

// WithBackoff overrides the retry policy.
func (s *SheetSource) WithBackoff(b BackoffConfig) *SheetSource {
	s.httpCfg.Backoff = b
	return s
}
