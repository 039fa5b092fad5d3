package model

import (
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
)

// Agreement is one escrow instance: the SLO, the schedule, both pools and
// their claim-token supplies, the status registry and every staker lockup.
type Agreement struct {
	ID             uuid.UUID         `json:"id"`
	Slo            Slo               `json:"slo"`
	Leverage       math.LegacyDec    `json:"leverage"`
	Mint           Token             `json:"mint"`
	Schedule       Schedule          `json:"schedule"`
	ProviderPool   uint64            `json:"provider_pool"`
	UserPool       uint64            `json:"user_pool"`
	ProviderShares uint64            `json:"provider_shares"`
	UserShares     uint64            `json:"user_shares"`
	Deployer       Account           `json:"deployer"`
	Validator      Account           `json:"validator"`
	Protocol       Account           `json:"protocol"`
	OracleSource   string            `json:"oracle_source"`
	Statuses       StatusRegistry    `json:"statuses"`
	Lockups        map[string]Lockup `json:"lockups"`
	Version        uint64            `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Clone returns a deep copy suitable for staging mutations.
func (a *Agreement) Clone() *Agreement {
	c := *a
	c.Statuses = make(StatusRegistry, len(a.Statuses))
	copy(c.Statuses, a.Statuses)
	c.Lockups = make(map[string]Lockup, len(a.Lockups))
	for k, v := range a.Lockups {
		c.Lockups[k] = v
	}
	return &c
}

// Pool returns the collateral held by side.
func (a *Agreement) Pool(side Side) uint64 {
	if side == SideProvider {
		return a.ProviderPool
	}
	return a.UserPool
}

// SetPool replaces the collateral held by side.
func (a *Agreement) SetPool(side Side, v uint64) {
	if side == SideProvider {
		a.ProviderPool = v
	} else {
		a.UserPool = v
	}
}

// Shares returns the claim-token supply of side.
func (a *Agreement) Shares(side Side) uint64 {
	if side == SideProvider {
		return a.ProviderShares
	}
	return a.UserShares
}

// SetShares replaces the claim-token supply of side.
func (a *Agreement) SetShares(side Side, v uint64) {
	if side == SideProvider {
		a.ProviderShares = v
	} else {
		a.UserShares = v
	}
}

// Lockup returns the lockup of staker on side, zero if none was recorded.
func (a *Agreement) Lockup(staker Account, side Side) Lockup {
	return a.Lockups[LockupKey(staker, side)]
}

// SetLockup stores the lockup of staker on side.
func (a *Agreement) SetLockup(staker Account, side Side, l Lockup) {
	if a.Lockups == nil {
		a.Lockups = make(map[string]Lockup)
	}
	a.Lockups[LockupKey(staker, side)] = l
}
