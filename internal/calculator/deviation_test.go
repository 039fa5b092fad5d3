package calculator

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"SlaEscrow/internal/model"
)

func slo(v int64, c model.Comparator) model.Slo {
	return model.Slo{Value: math.LegacyNewDec(v), Comparator: c}
}

func TestIsRespected(t *testing.T) {
	cases := []struct {
		cmp  model.Comparator
		sli  int64
		want bool
	}{
		{model.EqualTo, 100, true},
		{model.EqualTo, 99, false},
		{model.NotEqualTo, 99, true},
		{model.LessThan, 99, true},
		{model.LessThan, 100, false},
		{model.LessOrEqual, 100, true},
		{model.GreaterThan, 101, true},
		{model.GreaterThan, 100, false},
		{model.GreaterOrEqual, 100, true},
		{model.GreaterOrEqual, 99, false},
		{model.Comparator("bogus"), 100, false},
	}
	for _, tc := range cases {
		got := IsRespected(slo(100, tc.cmp), math.LegacyNewDec(tc.sli))
		assert.Equal(t, tc.want, got, "%s sli=%d", tc.cmp, tc.sli)
	}
}

func TestDeviation_EqualityIsOnePercent(t *testing.T) {
	d, err := Deviation(slo(10000, model.EqualTo), math.LegacyNewDec(5000), 10000)
	require.NoError(t, err)
	assert.True(t, d.Equal(math.LegacyNewDec(100)), "got %s", d)

	d, err = Deviation(slo(0, model.NotEqualTo), math.LegacyZeroDec(), 10000)
	require.NoError(t, err)
	assert.True(t, d.Equal(math.LegacyNewDec(100)), "got %s", d)
}

func TestDeviation_InvalidPrecision(t *testing.T) {
	for _, p := range []uint64{0, 10, 150} {
		_, err := Deviation(slo(100, model.LessThan), math.LegacyNewDec(90), p)
		require.ErrorIs(t, err, model.ErrInvalidPrecision, "precision %d", p)
	}
}

func TestDeviation_Raw(t *testing.T) {
	d, err := Deviation(slo(101, model.GreaterThan), math.LegacyNewDec(99), 10000)
	require.NoError(t, err)
	assert.True(t, d.Equal(math.LegacyNewDec(200)), "got %s", d)
}

func TestDeviation_Capped(t *testing.T) {
	d, err := Deviation(slo(80, model.LessThan), math.LegacyNewDec(120), 10000)
	require.NoError(t, err)
	assert.True(t, d.Equal(math.LegacyNewDec(2500)), "got %s", d)
}

func TestDeviation_ZeroMidpoint(t *testing.T) {
	_, err := Deviation(slo(5, model.LessThan), math.LegacyNewDec(-5), 10000)
	require.ErrorIs(t, err, model.ErrDivisionByZero)
}

func TestDeviation_OnZeroObjective(t *testing.T) {
	d, err := Deviation(slo(0, model.LessOrEqual), math.LegacyZeroDec(), 10000)
	require.NoError(t, err)
	assert.True(t, d.IsZero(), "got %s", d)

	d, err = Deviation(slo(0, model.LessOrEqual), math.LegacyNewDec(3), 10000)
	require.NoError(t, err)
	assert.True(t, d.Equal(math.LegacyNewDec(2500)), "got %s", d)
}

func TestDeviation_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		precision := rapid.Uint64Range(1, 1_000_000).Draw(t, "k") * 100
		cmp := rapid.SampledFrom([]model.Comparator{
			model.EqualTo, model.NotEqualTo, model.LessThan,
			model.LessOrEqual, model.GreaterThan, model.GreaterOrEqual,
		}).Draw(t, "cmp")
		sloValue := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "slo")
		sli := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "sli")

		d, err := Deviation(slo(sloValue, cmp), math.LegacyNewDec(sli), precision)
		p := DecFromUint64(precision)
		if cmp.IsEquality() {
			if err != nil {
				t.Fatalf("equality deviation failed: %v", err)
			}
			if !d.Equal(p.QuoInt64(100)) {
				t.Fatalf("equality deviation %s, want %s", d, p.QuoInt64(100))
			}
			return
		}
		if sli == sloValue {
			if err != nil || !d.IsZero() {
				t.Fatalf("deviation on the objective = %s, %v", d, err)
			}
			return
		}
		if sli+sloValue == 0 {
			if err == nil {
				t.Fatalf("expected division by zero")
			}
			return
		}
		if err != nil {
			t.Fatalf("deviation failed: %v", err)
		}
		if d.IsNegative() || d.GT(p.MulInt64(25).QuoInt64(100)) {
			t.Fatalf("deviation %s out of [0, %s]", d, p.MulInt64(25).QuoInt64(100))
		}
	})
}

func TestReward(t *testing.T) {
	r, err := Reward(1000, 4, math.LegacyNewDec(200), 10000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r)

	_, err = Reward(1000, 0, math.LegacyNewDec(200), 10000)
	require.ErrorIs(t, err, model.ErrDivisionByZero)
}
