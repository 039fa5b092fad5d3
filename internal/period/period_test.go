package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"SlaEscrow/internal/model"
)

func custom(start, length int64, count uint32) model.Schedule {
	return model.Schedule{Start: start, Length: model.CustomLength(length), Count: count}
}

func at(ts int64) time.Time { return time.Unix(ts, 0) }

func TestBoundsOf(t *testing.T) {
	s := custom(100, 50, 10)

	start, end, err := BoundsOf(s, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150), start)
	assert.Equal(t, int64(199), end)

	start, end, err = BoundsOf(s, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(550), start)
	assert.Equal(t, int64(599), end)

	_, _, err = BoundsOf(s, 10)
	require.ErrorIs(t, err, model.ErrInvalidPeriodId)
}

func TestPhaseAt(t *testing.T) {
	s := custom(100, 50, 10)

	assert.Equal(t, model.NotStarted(), PhaseAt(s, at(99)))
	assert.Equal(t, model.Active(0), PhaseAt(s, at(100)))
	assert.Equal(t, model.Active(0), PhaseAt(s, at(149)))
	assert.Equal(t, model.Active(1), PhaseAt(s, at(150)))
	assert.Equal(t, model.Active(9), PhaseAt(s, at(599)))
	assert.Equal(t, model.Ended(), PhaseAt(s, at(600)))
}

func TestHasElapsed(t *testing.T) {
	s := custom(100, 50, 10)

	done, err := HasElapsed(s, 1, at(199))
	require.NoError(t, err)
	assert.False(t, done)

	done, err = HasElapsed(s, 1, at(200))
	require.NoError(t, err)
	assert.True(t, done)

	_, err = HasElapsed(s, 11, at(200))
	require.ErrorIs(t, err, model.ErrInvalidPeriodId)
}

func TestElapsed(t *testing.T) {
	s := custom(100, 50, 3)
	assert.Empty(t, Elapsed(s, at(50)))
	assert.Equal(t, []uint32{0}, Elapsed(s, at(160)))
	assert.Equal(t, []uint32{0, 1, 2}, Elapsed(s, at(1000)))
}

func TestMonthly(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	s := model.Schedule{Start: jan, Length: model.Monthly(), Count: 12}

	start, end, err := BoundsOf(s, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC).Unix(), start)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC).Unix()-1, end)

	mid := time.Date(2025, time.February, 28, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, model.Active(1), PhaseAt(s, mid))
	assert.Equal(t, model.Ended(), PhaseAt(s, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestYearly(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC).Unix()
	s := model.Schedule{Start: start, Length: model.Yearly(), Count: 3}

	assert.Equal(t, model.Active(0), PhaseAt(s, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.Active(1), PhaseAt(s, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.Active(2), PhaseAt(s, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestValidateLength(t *testing.T) {
	require.NoError(t, ValidateLength(model.CustomLength(1)))
	require.NoError(t, ValidateLength(model.Monthly()))
	require.ErrorIs(t, ValidateLength(model.CustomLength(0)), model.ErrInvalidPeriodLength)
	require.ErrorIs(t, ValidateLength(model.PeriodLength{Kind: "weekly"}), model.ErrInvalidPeriodLength)
}

func TestPhaseAt_MatchesBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := custom(
			rapid.Int64Range(0, 1<<32).Draw(t, "start"),
			rapid.Int64Range(1, 1<<20).Draw(t, "length"),
			rapid.Uint32Range(1, 1000).Draw(t, "count"),
		)
		ts := rapid.Int64Range(0, 1<<33).Draw(t, "now")

		phase := PhaseAt(s, at(ts))
		if phase.Kind != model.PhaseActive {
			return
		}
		if phase.PeriodID >= s.Count {
			t.Fatalf("active period %d of %d", phase.PeriodID, s.Count)
		}
		start, end, err := BoundsOf(s, phase.PeriodID)
		if err != nil {
			t.Fatalf("bounds: %v", err)
		}
		if ts < start || ts > end {
			t.Fatalf("%d outside period %d [%d, %d]", ts, phase.PeriodID, start, end)
		}
	})
}

func TestFixedClock(t *testing.T) {
	c := NewFixedClock(100)
	c.Advance(50 * time.Second)
	assert.Equal(t, int64(150), c.Now().Unix())
	c.Set(10)
	assert.Equal(t, int64(10), c.Now().Unix())
}
