package calculator

import (
	"cosmossdk.io/math"

	"SlaEscrow/internal/model"
)

// Add returns a + b, failing instead of wrapping.
func Add(a, b uint64) (uint64, error) {
	if a > (1<<64-1)-b {
		return 0, model.ErrArithmeticOverflow.Wrapf("%d + %d", a, b)
	}
	return a + b, nil
}

// Sub returns a - b, failing instead of wrapping below zero.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, model.ErrArithmeticOverflow.Wrapf("%d - %d underflows", a, b)
	}
	return a - b, nil
}

// MulDivFloor returns floor(a * b / c) without intermediate overflow.
func MulDivFloor(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, model.ErrDivisionByZero.Wrapf("%d * %d / 0", a, b)
	}
	r := math.NewIntFromUint64(a).Mul(math.NewIntFromUint64(b)).Quo(math.NewIntFromUint64(c))
	return IntToUint64(r)
}

// MulRateFloor returns floor(amount * rate).
func MulRateFloor(amount uint64, rate math.LegacyDec) (v uint64, err error) {
	defer guard(&err)
	if rate.IsNil() {
		return 0, model.ErrDecimalConversionFailure.Wrap("nil rate")
	}
	return FloorUint64(rate.MulInt(math.NewIntFromUint64(amount)))
}

// SharesToMint returns the claim tokens minted for amount of collateral
// deposited into a pool of poolSize backing supply claim tokens. An empty
// pool mints 1:1.
func SharesToMint(amount, poolSize, supply uint64) (uint64, error) {
	if poolSize == supply {
		return amount, nil
	}
	if poolSize == 0 || supply == 0 {
		return 0, model.ErrDivisionByZero.Wrapf("pool %d backs %d shares", poolSize, supply)
	}
	return MulDivFloor(amount, supply, poolSize)
}

// TokensOwed returns the collateral redeemed by burning burn claim tokens.
func TokensOwed(burn, poolSize, supply uint64) (uint64, error) {
	if supply == 0 {
		return 0, model.ErrDivisionByZero.Wrap("claim token supply is zero")
	}
	return MulDivFloor(burn, poolSize, supply)
}

// Collateralized reports whether provider >= leverage * user.
func Collateralized(provider, user uint64, leverage math.LegacyDec) (ok bool, err error) {
	defer guard(&err)
	if leverage.IsNil() {
		return false, model.ErrDecimalConversionFailure.Wrap("nil leverage")
	}
	required := leverage.MulInt(math.NewIntFromUint64(user))
	return DecFromUint64(provider).GTE(required), nil
}

// MaxBreachTransfer returns the largest amount that can move from the
// provider pool to the user pool while keeping provider >= leverage * user.
func MaxBreachTransfer(provider, user uint64, leverage math.LegacyDec) (v uint64, err error) {
	defer guard(&err)
	slack := DecFromUint64(provider).Sub(leverage.MulInt(math.NewIntFromUint64(user)))
	if !slack.IsPositive() {
		return 0, nil
	}
	return FloorUint64(slack.Quo(leverage.Add(math.LegacyOneDec())))
}
