package model

import "cosmossdk.io/math"

// Governance holds protocol-wide parameters. The engine only reads them;
// they are supplied per call.
type Governance struct {
	// Withdraw fee rates, fractions of the tokens owed.
	ProtocolRewardRate math.LegacyDec `json:"protocol_reward_rate"`
	DeployerRewardRate math.LegacyDec `json:"deployer_reward_rate"`

	// Per-validation amounts paid out of the agreement's fee vault.
	ValidatorReward uint64 `json:"validator_reward"`
	ProtocolReward  uint64 `json:"protocol_reward"`
	BurnAmount      uint64 `json:"burn_amount"`
	DepositByPeriod uint64 `json:"deposit_by_period"`

	MaxLeverage     math.LegacyDec `json:"max_leverage"`
	MinPeriodLength int64          `json:"min_period_length"`
	MinStartDelay   int64          `json:"min_start_delay"`
	MaxPeriods      uint32         `json:"max_periods"`
}

// Validate checks the governance parameters are consistent.
func (g Governance) Validate() error {
	if g.ProtocolRewardRate.IsNil() || g.DeployerRewardRate.IsNil() || g.MaxLeverage.IsNil() {
		return ErrNonValidGovernanceParameters.Wrap("rates and max leverage must be set")
	}
	if g.ProtocolRewardRate.IsNegative() || g.DeployerRewardRate.IsNegative() {
		return ErrNonValidGovernanceParameters.Wrap("reward rates cannot be negative")
	}
	if g.ProtocolRewardRate.Add(g.DeployerRewardRate).GTE(math.LegacyOneDec()) {
		return ErrNonValidGovernanceParameters.Wrap("reward rates must sum below one")
	}
	if !g.MaxLeverage.IsPositive() {
		return ErrNonValidGovernanceParameters.Wrap("max leverage must be positive")
	}
	fees := math.NewIntFromUint64(g.BurnAmount).
		Add(math.NewIntFromUint64(g.ValidatorReward)).
		Add(math.NewIntFromUint64(g.ProtocolReward))
	if !fees.Equal(math.NewIntFromUint64(g.DepositByPeriod)) {
		return ErrNonValidGovernanceParameters.Wrapf(
			"deposit by period %d must equal burn %d + validator %d + protocol %d",
			g.DepositByPeriod, g.BurnAmount, g.ValidatorReward, g.ProtocolReward)
	}
	if g.MinPeriodLength < 0 || g.MinStartDelay < 0 {
		return ErrNonValidGovernanceParameters.Wrap("minimum delays cannot be negative")
	}
	return nil
}
