package collector

import (
	"context"
	"time"

	"cosmossdk.io/math"
)

//go:generate mockgen -source=feed.go -destination=mocks/feed.go -package=mocks

// Feed supplies SLI readings for one oracle source.
type Feed interface {
	Source() string
	Read(ctx context.Context) (Reading, error)
}

// Reading is one SLI observation. Confidence is the width of the source's
// confidence interval around Value; zero means exact.
type Reading struct {
	Value      math.LegacyDec
	ObservedAt time.Time
	Confidence math.LegacyDec
}

// StaleAfter reports whether r is older than maxAge at now. A zero maxAge
// disables the check.
func (r Reading) StaleAfter(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(r.ObservedAt) > maxAge
}

// ExceedsConfidence reports whether the confidence interval is wider than
// max. A nil or non-positive max disables the check.
func (r Reading) ExceedsConfidence(max math.LegacyDec) bool {
	if max.IsNil() || !max.IsPositive() || r.Confidence.IsNil() {
		return false
	}
	return r.Confidence.GT(max)
}
