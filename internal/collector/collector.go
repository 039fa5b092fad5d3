package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/math"

	"SlaEscrow/internal/model"
)

// Collector resolves oracle sources to feeds.
type Collector struct {
	mu    sync.RWMutex
	feeds map[string]Feed
}

// NewCollector creates a Collector holding feeds.
func NewCollector(feeds ...Feed) *Collector {
	c := &Collector{feeds: make(map[string]Feed)}
	for _, f := range feeds {
		c.Register(f)
	}
	return c
}

// Register adds or replaces the feed for f.Source().
func (c *Collector) Register(f Feed) {
	c.mu.Lock()
	c.feeds[f.Source()] = f
	c.mu.Unlock()
}

// Feed returns the feed registered for source.
func (c *Collector) Feed(source string) (Feed, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.feeds[source]
	if !ok {
		return nil, model.ErrInvalidFeedSource.Wrapf("no feed for %q", source)
	}
	return f, nil
}

// Has reports whether source is known.
func (c *Collector) Has(source string) bool {
	_, err := c.Feed(source)
	return err == nil
}

// Sources lists the registered sources, sorted.
func (c *Collector) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.feeds))
	for s := range c.feeds {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// StaticFeed returns a controllable fixed reading for development and testing.
type StaticFeed struct {
	Name string
	// Now, when set, stamps every reading as freshly observed.
	Now func() time.Time

	mu      sync.Mutex
	reading Reading
	err     error
}

// NewStaticFeed creates a static feed for source.
func NewStaticFeed(source string, reading Reading) *StaticFeed {
	return &StaticFeed{Name: source, reading: reading}
}

func (s *StaticFeed) Source() string { return s.Name }

func (s *StaticFeed) Read(_ context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reading
	if s.Now != nil {
		r.ObservedAt = s.Now()
	}
	return r, s.err
}

// Set replaces the reading returned by Read.
func (s *StaticFeed) Set(r Reading) {
	s.mu.Lock()
	s.reading, s.err = r, nil
	s.mu.Unlock()
}

// SetValue replaces only the reported value.
func (s *StaticFeed) SetValue(v math.LegacyDec) {
	s.mu.Lock()
	s.reading.Value = v
	s.mu.Unlock()
}

// Fail makes Read return err.
func (s *StaticFeed) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
