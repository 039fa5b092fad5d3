package period

import (
	"time"

	"SlaEscrow/internal/model"
)

// BoundsOf returns the inclusive [start, end] unix-second bounds of periodID.
func BoundsOf(s model.Schedule, periodID uint32) (int64, int64, error) {
	if periodID >= s.Count {
		return 0, 0, model.ErrInvalidPeriodId.Wrapf("period %d of %d", periodID, s.Count)
	}
	start, err := startOf(s, int64(periodID))
	if err != nil {
		return 0, 0, err
	}
	next, err := startOf(s, int64(periodID)+1)
	if err != nil {
		return 0, 0, err
	}
	return start, next - 1, nil
}

// End returns the last second of the schedule.
func End(s model.Schedule) (int64, error) {
	if s.Count == 0 {
		return 0, model.ErrZeroNumberOfPeriods
	}
	_, end, err := BoundsOf(s, s.Count-1)
	return end, err
}

// PhaseAt maps now onto the schedule.
func PhaseAt(s model.Schedule, now time.Time) model.Phase {
	ts := now.Unix()
	if ts < s.Start {
		return model.NotStarted()
	}
	end, err := End(s)
	if err != nil || ts > end {
		return model.Ended()
	}
	id, err := indexOf(s, ts)
	if err != nil || id >= int64(s.Count) {
		return model.Ended()
	}
	return model.Active(uint32(id))
}

// HasElapsed reports whether periodID is over at now.
func HasElapsed(s model.Schedule, periodID uint32, now time.Time) (bool, error) {
	_, end, err := BoundsOf(s, periodID)
	if err != nil {
		return false, err
	}
	return now.Unix() > end, nil
}

// Elapsed returns the ids of every period over at now, in order.
func Elapsed(s model.Schedule, now time.Time) []uint32 {
	var ids []uint32
	switch phase := PhaseAt(s, now); phase.Kind {
	case model.PhaseActive:
		for i := uint32(0); i < phase.PeriodID; i++ {
			ids = append(ids, i)
		}
	case model.PhaseEnded:
		for i := uint32(0); i < s.Count; i++ {
			ids = append(ids, i)
		}
	}
	return ids
}

// ValidateLength checks that a period length is usable.
func ValidateLength(l model.PeriodLength) error {
	switch l.Kind {
	case model.LengthCustom:
		if l.Seconds <= 0 {
			return model.ErrInvalidPeriodLength.Wrapf("%d seconds", l.Seconds)
		}
		return nil
	case model.LengthMonthly, model.LengthYearly:
		return nil
	default:
		return model.ErrInvalidPeriodLength.Wrapf("unknown kind %q", l.Kind)
	}
}

// Seconds returns the nominal length of one period, used for governance
// minimums. Calendar lengths use their shortest instance.
func Seconds(l model.PeriodLength) int64 {
	switch l.Kind {
	case model.LengthMonthly:
		return 28 * 24 * 3600
	case model.LengthYearly:
		return 365 * 24 * 3600
	default:
		return l.Seconds
	}
}

func startOf(s model.Schedule, i int64) (int64, error) {
	switch s.Length.Kind {
	case model.LengthCustom:
		if s.Length.Seconds <= 0 {
			return 0, model.ErrInvalidPeriodLength.Wrapf("%d seconds", s.Length.Seconds)
		}
		if i != 0 && s.Length.Seconds > (maxInt64-s.Start)/i {
			return 0, model.ErrArithmeticOverflow.Wrapf("period %d start", i)
		}
		return s.Start + s.Length.Seconds*i, nil
	case model.LengthMonthly:
		return time.Unix(s.Start, 0).UTC().AddDate(0, int(i), 0).Unix(), nil
	case model.LengthYearly:
		return time.Unix(s.Start, 0).UTC().AddDate(int(i), 0, 0).Unix(), nil
	default:
		return 0, model.ErrInvalidPeriodLength.Wrapf("unknown kind %q", s.Length.Kind)
	}
}

const maxInt64 = int64(^uint64(0) >> 1)

// indexOf returns the id of the period containing ts, assuming ts >= Start.
func indexOf(s model.Schedule, ts int64) (int64, error) {
	if s.Length.Kind == model.LengthCustom {
		if s.Length.Seconds <= 0 {
			return 0, model.ErrInvalidPeriodLength.Wrapf("%d seconds", s.Length.Seconds)
		}
		return (ts - s.Start) / s.Length.Seconds, nil
	}

	from := time.Unix(s.Start, 0).UTC()
	at := time.Unix(ts, 0).UTC()
	guess := int64(at.Year() - from.Year())
	if s.Length.Kind == model.LengthMonthly {
		guess = guess*12 + int64(at.Month()) - int64(from.Month())
	}
	if guess < 0 {
		guess = 0
	}
	for guess > 0 {
		start, err := startOf(s, guess)
		if err != nil {
			return 0, err
		}
		if start <= ts {
			break
		}
		guess--
	}
	for {
		next, err := startOf(s, guess+1)
		if err != nil {
			return 0, err
		}
		if next > ts {
			return guess, nil
		}
		guess++
	}
}
