package sources

import (
	"context"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weight-tracker/internal/weight"
)

// StaticSource fetches a static data.json file of the form
// {"weights":[{"date":<ms>,"weight":<kg>}, ...]}.
type StaticSource struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewStaticSource(client *http.Client, url string) *StaticSource {
	return &StaticSource{
		name: "static",
		url:  url,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("static"),
	}
}

func (s *StaticSource) Name() string {
	return s.name
}

func (s *StaticSource) Fetch(ctx context.Context) ([]weight.Sample, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, &weight.LoadError{Source: s.name, Err: err}
	}
	defer resp.Body.Close()

	return weight.Decode(resp.Body, weight.FormatWeights, s.name)
}

// WithBackoff overrides the retry policy.
func (s *StaticSource) WithBackoff(b BackoffConfig) *StaticSource {
	s.httpCfg.Backoff = b
	return s
}
