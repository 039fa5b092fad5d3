package collector

import (
	"context"
	"fmt"
	stdmath "math"
	"strconv"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
)

// PrometheusFeed evaluates an instant PromQL query and uses the single
// resulting sample as the SLI.
type PrometheusFeed struct {
	Name  string
	Query string
	API   promv1.API
}

// NewPrometheusFeed creates a feed against a Prometheus server.
func NewPrometheusFeed(source, address, query, proxyURL string) (*PrometheusFeed, error) {
	client, err := api.NewClient(api.Config{
		Address:      address,
		RoundTripper: newHTTPClient(proxyURL).Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &PrometheusFeed{Name: source, Query: query, API: promv1.NewAPI(client)}, nil
}

func (f *PrometheusFeed) Source() string { return f.Name }

func (f *PrometheusFeed) Read(ctx context.Context) (Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, _, err := f.API.Query(ctx, f.Query, time.Now())
	if err != nil {
		return Reading{}, fmt.Errorf("query %q: %w", f.Query, err)
	}

	if result == nil {
		return Reading{}, fmt.Errorf("query %q: empty result", f.Query)
	}

	var sample prommodel.SamplePair
	switch v := result.(type) {
	case prommodel.Vector:
		if len(v) != 1 {
			return Reading{}, fmt.Errorf("query %q: expected one sample, got %d", f.Query, len(v))
		}
		sample = prommodel.SamplePair{Timestamp: v[0].Timestamp, Value: v[0].Value}
	case *prommodel.Scalar:
		sample = prommodel.SamplePair{Timestamp: v.Timestamp, Value: v.Value}
	default:
		return Reading{}, fmt.Errorf("query %q: unsupported result type %s", f.Query, result.Type())
	}

	value, err := decFromFloat(float64(sample.Value))
	if err != nil {
		return Reading{}, fmt.Errorf("query %q: %w", f.Query, err)
	}
	return Reading{
		Value:      value,
		ObservedAt: sample.Timestamp.Time(),
		Confidence: math.LegacyZeroDec(),
	}, nil
}

func decFromFloat(v float64) (math.LegacyDec, error) {
	if stdmath.IsNaN(v) || stdmath.IsInf(v, 0) {
		return math.LegacyDec{}, fmt.Errorf("non-finite sample %v", v)
	}
	return math.LegacyNewDecFromStr(strconv.FormatFloat(v, 'f', math.LegacyPrecision, 64))
}
