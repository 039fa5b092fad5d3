// Package lockup enforces the vesting rule on claim tokens: tokens minted
// during a period stay locked for at least one full following period.
package lockup

import (
	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/model"
)

// RecordStake adds amount freshly minted claim tokens to l at phase.
func RecordStake(l *model.Lockup, amount uint64, phase model.Phase) error {
	switch phase.Kind {
	case model.PhaseNotStarted:
		prev, err := calculator.Add(l.LockedPrevious, amount)
		if err != nil {
			return err
		}
		l.LockedPrevious = prev
		l.LockedFromPeriod = 0
		return nil
	case model.PhaseActive:
		id := phase.PeriodID
		if id == l.LockedFromPeriod {
			cur, err := calculator.Add(l.LockedCurrent, amount)
			if err != nil {
				return err
			}
			l.LockedCurrent = cur
			return nil
		}
		next, err := roll(l, id)
		if err != nil {
			return err
		}
		next.LockedCurrent = amount
		*l = next
		return nil
	case model.PhaseEnded:
		return model.ErrCannotStakeAfterEnd
	default:
		return model.ErrInvalidPeriodId.Wrapf("unknown phase %d", phase.Kind)
	}
}

// Advance releases every bucket whose lock has expired at phase.
func Advance(l *model.Lockup, phase model.Phase) error {
	switch phase.Kind {
	case model.PhaseNotStarted:
		return nil
	case model.PhaseActive:
		if phase.PeriodID == l.LockedFromPeriod {
			return nil
		}
		next, err := roll(l, phase.PeriodID)
		if err != nil {
			return err
		}
		*l = next
		return nil
	case model.PhaseEnded:
		locked, err := calculator.Add(l.LockedPrevious, l.LockedCurrent)
		if err != nil {
			return err
		}
		avail, err := calculator.Add(l.Available, locked)
		if err != nil {
			return err
		}
		*l = model.Lockup{Available: avail}
		return nil
	default:
		return model.ErrInvalidPeriodId.Wrapf("unknown phase %d", phase.Kind)
	}
}

// Withdraw consumes amount available claim tokens.
func Withdraw(l *model.Lockup, amount uint64) error {
	if amount == 0 {
		return model.ErrWithdrawalIsZero
	}
	if amount > l.Available {
		return model.ErrNoAvailableTokensForWithdrawal.Wrapf("requested %d, available %d", amount, l.Available)
	}
	l.Available -= amount
	return nil
}

// roll returns l moved forward to period id with the current bucket
// emptied. id must be greater than l.LockedFromPeriod.
func roll(l *model.Lockup, id uint32) (model.Lockup, error) {
	if id < l.LockedFromPeriod {
		return model.Lockup{}, model.ErrInvalidPeriodId.Wrapf("period %d precedes locked period %d", id, l.LockedFromPeriod)
	}
	next := model.Lockup{LockedFromPeriod: id}
	if id == l.LockedFromPeriod+1 {
		avail, err := calculator.Add(l.Available, l.LockedPrevious)
		if err != nil {
			return model.Lockup{}, err
		}
		next.Available = avail
		next.LockedPrevious = l.LockedCurrent
		return next, nil
	}
	locked, err := calculator.Add(l.LockedPrevious, l.LockedCurrent)
	if err != nil {
		return model.Lockup{}, err
	}
	avail, err := calculator.Add(l.Available, locked)
	if err != nil {
		return model.Lockup{}, err
	}
	next.Available = avail
	return next, nil
}
