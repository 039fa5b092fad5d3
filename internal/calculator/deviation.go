package calculator

import (
	"cosmossdk.io/math"

	"SlaEscrow/internal/model"
)

// deviationCapPercent bounds the deviation to 25% of the precision.
const deviationCapPercent = 25

// IsRespected applies the SLO comparator to (sli, slo.Value).
func IsRespected(slo model.Slo, sli math.LegacyDec) bool {
	switch slo.Comparator {
	case model.EqualTo:
		return sli.Equal(slo.Value)
	case model.NotEqualTo:
		return !sli.Equal(slo.Value)
	case model.LessThan:
		return sli.LT(slo.Value)
	case model.LessOrEqual:
		return sli.LTE(slo.Value)
	case model.GreaterThan:
		return sli.GT(slo.Value)
	case model.GreaterOrEqual:
		return sli.GTE(slo.Value)
	default:
		return false
	}
}

// Deviation returns how far sli is from the SLO, in units of precision.
//
//	            |sli - slo|
//	raw = ------------------- * precision
//	       |(sli + slo) / 2|
//
// The result is capped at 25% of precision. Equality comparators have no
// distance metric and always yield 1% of precision. A reading exactly on the
// objective has zero deviation, including a zero objective.
func Deviation(slo model.Slo, sli math.LegacyDec, precision uint64) (d math.LegacyDec, err error) {
	defer guard(&err)
	if precision == 0 || precision%100 != 0 {
		return math.LegacyDec{}, model.ErrInvalidPrecision.Wrapf("got %d", precision)
	}
	p := DecFromUint64(precision)
	if slo.Comparator.IsEquality() {
		return p.QuoInt64(100), nil
	}

	if sli.Equal(slo.Value) {
		return math.LegacyZeroDec(), nil
	}

	mid := sli.Add(slo.Value).QuoInt64(2).Abs()
	if mid.IsZero() {
		return math.LegacyDec{}, model.ErrDivisionByZero.Wrap("sli and slo midpoint is zero")
	}
	raw := sli.Sub(slo.Value).Abs().Mul(p).Quo(mid)
	return math.LegacyMinDec(raw, p.MulInt64(deviationCapPercent).QuoInt64(100)), nil
}

// Reward returns floor(pool / periodsLeft * deviation / precision): the
// share of pool that moves for one period with the given deviation.
func Reward(pool uint64, periodsLeft uint32, deviation math.LegacyDec, precision uint64) (v uint64, err error) {
	defer guard(&err)
	if periodsLeft == 0 || precision == 0 {
		return 0, model.ErrDivisionByZero.Wrapf("periods left %d, precision %d", periodsLeft, precision)
	}
	base := DecFromUint64(pool).QuoInt64(int64(periodsLeft))
	return FloorUint64(base.Mul(deviation).Quo(DecFromUint64(precision)))
}
