package model

// Lockup tracks how much of a staker's claim tokens are withdrawable and how
// much is still vesting. Tokens staked during a period stay locked for at
// least the whole following period.
type Lockup struct {
	Available        uint64 `json:"available"`
	LockedPrevious   uint64 `json:"locked_previous"`
	LockedCurrent    uint64 `json:"locked_current"`
	LockedFromPeriod uint32 `json:"locked_from_period"`
}

// LockupKey is the key of a staker's lockup for one side.
func LockupKey(staker Account, side Side) string {
	return string(side) + ":" + string(staker)
}
