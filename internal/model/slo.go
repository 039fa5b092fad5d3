package model

import "cosmossdk.io/math"

// Comparator is the relation an SLI must satisfy against the SLO value.
type Comparator string

const (
	EqualTo        Comparator = "equal_to"
	NotEqualTo     Comparator = "not_equal_to"
	LessThan       Comparator = "less_than"
	LessOrEqual    Comparator = "less_or_equal"
	GreaterThan    Comparator = "greater_than"
	GreaterOrEqual Comparator = "greater_or_equal"
)

// Valid reports whether c is one of the known comparators.
func (c Comparator) Valid() bool {
	switch c {
	case EqualTo, NotEqualTo, LessThan, LessOrEqual, GreaterThan, GreaterOrEqual:
		return true
	default:
		return false
	}
}

// IsEquality reports whether c compares for (in)equality rather than order.
func (c Comparator) IsEquality() bool {
	return c == EqualTo || c == NotEqualTo
}

// Slo is the service level objective an agreement is measured against.
type Slo struct {
	Value      math.LegacyDec `json:"value"`
	Comparator Comparator     `json:"comparator"`
}
