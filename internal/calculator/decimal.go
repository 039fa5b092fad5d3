package calculator

import (
	"math/big"

	"cosmossdk.io/math"

	"SlaEscrow/internal/model"
)

// FromMantissa converts a mantissa/scale pair into a fixed-point decimal.
// Scales beyond the decimal's fixed precision are rejected instead of rounded.
func FromMantissa(mantissa uint64, scale uint32) (math.LegacyDec, error) {
	if scale > math.LegacyPrecision {
		return math.LegacyDec{}, model.ErrDecimalConversionFailure.Wrapf("scale %d exceeds %d", scale, math.LegacyPrecision)
	}
	return math.LegacyNewDecFromBigIntWithPrec(new(big.Int).SetUint64(mantissa), int64(scale)), nil
}

// ParseDec parses a decimal string such as "1.25".
func ParseDec(s string) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return math.LegacyDec{}, model.ErrDecimalConversionFailure.Wrapf("%q: %v", s, err)
	}
	return d, nil
}

// DecFromUint64 lifts a token amount into a decimal.
func DecFromUint64(v uint64) math.LegacyDec {
	return math.LegacyNewDecFromInt(math.NewIntFromUint64(v))
}

// FloorUint64 truncates d to a token amount.
func FloorUint64(d math.LegacyDec) (uint64, error) {
	if d.IsNil() {
		return 0, model.ErrDecimalConversionFailure.Wrap("nil decimal")
	}
	if d.IsNegative() {
		return 0, model.ErrDecimalConversionFailure.Wrapf("negative amount %s", d)
	}
	return IntToUint64(d.TruncateInt())
}

// IntToUint64 narrows i to a token amount.
func IntToUint64(i math.Int) (uint64, error) {
	if !i.IsUint64() {
		return 0, model.ErrArithmeticOverflow.Wrapf("%s does not fit in uint64", i)
	}
	return i.Uint64(), nil
}

// guard turns a panic raised by the decimal library into ErrArithmeticOverflow.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = model.ErrArithmeticOverflow.Wrapf("%v", r)
	}
}
