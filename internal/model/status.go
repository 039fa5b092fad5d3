package model

import "cosmossdk.io/math"

// StatusKind discriminates period verification outcomes.
type StatusKind string

const (
	StatusNotVerified  StatusKind = "not_verified"
	StatusRespected    StatusKind = "respected"
	StatusNotRespected StatusKind = "not_respected"
)

// Status is the verification outcome of one period. Value holds the SLI
// that decided a terminal status.
type Status struct {
	Kind  StatusKind     `json:"kind"`
	Value math.LegacyDec `json:"value"`
}

// NotVerified returns the initial status of every period.
func NotVerified() Status {
	return Status{Kind: StatusNotVerified, Value: math.LegacyZeroDec()}
}

// Respected returns the terminal status of a period whose SLI met the SLO.
func Respected(sli math.LegacyDec) Status {
	return Status{Kind: StatusRespected, Value: sli}
}

// NotRespected returns the terminal status of a period whose SLI breached the SLO.
func NotRespected(sli math.LegacyDec) Status {
	return Status{Kind: StatusNotRespected, Value: sli}
}

// Verified reports whether s is terminal.
func (s Status) Verified() bool { return s.Kind != StatusNotVerified }

// StatusRegistry holds one status per period. Entries are append-only:
// each moves from NotVerified to a terminal status at most once.
type StatusRegistry []Status

// NewStatusRegistry returns count NotVerified entries.
func NewStatusRegistry(count uint32) StatusRegistry {
	r := make(StatusRegistry, count)
	for i := range r {
		r[i] = NotVerified()
	}
	return r
}

// Get returns the status of periodID.
func (r StatusRegistry) Get(periodID uint32) (Status, error) {
	if uint64(periodID) >= uint64(len(r)) {
		return Status{}, ErrInvalidPeriodId.Wrapf("period %d of %d", periodID, len(r))
	}
	return r[periodID], nil
}

// Set records a terminal status for periodID.
func (r StatusRegistry) Set(periodID uint32, s Status) error {
	current, err := r.Get(periodID)
	if err != nil {
		return err
	}
	if current.Verified() {
		return ErrAlreadyVerifiedPeriod.Wrapf("period %d is %s", periodID, current.Kind)
	}
	if !s.Verified() {
		return ErrInvalidStatusTransition.Wrapf("period %d cannot be reset", periodID)
	}
	r[periodID] = s
	return nil
}

// VerifiedThrough reports whether every period before periodID is verified.
func (r StatusRegistry) VerifiedThrough(periodID uint32) bool {
	for i := uint32(0); i < periodID && int(i) < len(r); i++ {
		if !r[i].Verified() {
			return false
		}
	}
	return true
}

// AllVerified reports whether every period is verified.
func (r StatusRegistry) AllVerified() bool {
	return r.VerifiedThrough(uint32(len(r)))
}

// Pending returns the ids of periods still NotVerified, in order.
func (r StatusRegistry) Pending() []uint32 {
	var ids []uint32
	for i, s := range r {
		if !s.Verified() {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}
