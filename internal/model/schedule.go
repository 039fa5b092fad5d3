package model

import "fmt"

// LengthKind discriminates PeriodLength variants.
type LengthKind string

const (
	LengthCustom  LengthKind = "custom"
	LengthMonthly LengthKind = "monthly"
	LengthYearly  LengthKind = "yearly"
)

// PeriodLength is the length of one period. Custom lengths carry a fixed
// number of seconds; monthly and yearly lengths follow the UTC calendar.
type PeriodLength struct {
	Kind    LengthKind `json:"kind"`
	Seconds int64      `json:"seconds,omitempty"`
}

// CustomLength returns a fixed-length period of the given seconds.
func CustomLength(seconds int64) PeriodLength {
	return PeriodLength{Kind: LengthCustom, Seconds: seconds}
}

// Monthly returns a calendar-month period length.
func Monthly() PeriodLength { return PeriodLength{Kind: LengthMonthly} }

// Yearly returns a calendar-year period length.
func Yearly() PeriodLength { return PeriodLength{Kind: LengthYearly} }

func (l PeriodLength) String() string {
	if l.Kind == LengthCustom {
		return fmt.Sprintf("%ds", l.Seconds)
	}
	return string(l.Kind)
}

// Schedule describes the sequence of periods of an agreement.
// Start is a unix timestamp in seconds.
type Schedule struct {
	Start  int64        `json:"start"`
	Length PeriodLength `json:"length"`
	Count  uint32       `json:"count"`
}

// PhaseKind discriminates lifecycle phases.
type PhaseKind int

const (
	PhaseNotStarted PhaseKind = iota
	PhaseActive
	PhaseEnded
)

// Phase is the lifecycle phase of an agreement at a point in time.
// PeriodID is only meaningful when Kind is PhaseActive.
type Phase struct {
	Kind     PhaseKind
	PeriodID uint32
}

// NotStarted is the phase before the first period starts.
func NotStarted() Phase { return Phase{Kind: PhaseNotStarted} }

// Active is the phase while periodID is running.
func Active(periodID uint32) Phase { return Phase{Kind: PhaseActive, PeriodID: periodID} }

// Ended is the phase after the last period ended.
func Ended() Phase { return Phase{Kind: PhaseEnded} }

func (p Phase) String() string {
	switch p.Kind {
	case PhaseNotStarted:
		return "not_started"
	case PhaseActive:
		return fmt.Sprintf("active(%d)", p.PeriodID)
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}
