package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cosmossdk.io/math"

	"SlaEscrow/internal/calculator"
)

// HTTPFeed reads SLI values from a JSON endpoint that reports fixed-point
// mantissa/scale pairs:
//
//	{"value": {"mantissa": 9995, "scale": 2}, "confidence": {"mantissa": 1, "scale": 2}, "timestamp": 1700000000}
type HTTPFeed struct {
	Name    string
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPFeed creates a feed with optional proxy support.
func NewHTTPFeed(source, baseURL, apiKey, proxyURL string) *HTTPFeed {
	return &HTTPFeed{
		Name:    source,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (f *HTTPFeed) Source() string { return f.Name }

type fixedJSON struct {
	Mantissa int64  `json:"mantissa"`
	Scale    uint32 `json:"scale"`
}

func (d fixedJSON) dec() (math.LegacyDec, error) {
	neg := d.Mantissa < 0
	m := uint64(d.Mantissa)
	if neg {
		m = uint64(-d.Mantissa)
	}
	v, err := calculator.FromMantissa(m, d.Scale)
	if err != nil {
		return math.LegacyDec{}, err
	}
	if neg {
		v = v.Neg()
	}
	return v, nil
}

type readingJSON struct {
	Value      fixedJSON  `json:"value"`
	Confidence *fixedJSON `json:"confidence"`
	Timestamp  int64      `json:"timestamp"`
}

func (f *HTTPFeed) Read(ctx context.Context) (Reading, error) {
	endpoint := fmt.Sprintf("%s/api/v1/sli?source=%s", f.BaseURL, url.QueryEscape(f.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Reading{}, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("fetch sli: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reading{}, fmt.Errorf("fetch sli: status %d, body: %s", resp.StatusCode, string(body))
	}

	var raw readingJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Reading{}, fmt.Errorf("decode sli: %w", err)
	}
	value, err := raw.Value.dec()
	if err != nil {
		return Reading{}, fmt.Errorf("decode sli value: %w", err)
	}
	confidence := math.LegacyZeroDec()
	if raw.Confidence != nil {
		if confidence, err = raw.Confidence.dec(); err != nil {
			return Reading{}, fmt.Errorf("decode sli confidence: %w", err)
		}
	}
	return Reading{
		Value:      value,
		ObservedAt: time.Unix(raw.Timestamp, 0),
		Confidence: confidence.Abs(),
	}, nil
}
