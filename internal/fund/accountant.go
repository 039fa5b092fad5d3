package fund

import (
	"context"

	"github.com/google/uuid"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/lockup"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
)

// Accountant handles dual-pool stake and withdraw operations. It never
// mutates the agreement it is given: every call works on a clone, and the
// clone is returned only after all checks and ledger calls succeeded.
type Accountant struct {
	Ledger ledger.Ledger
	Clock  period.Clock

	// RequireFinalValidation blocks withdrawals after the agreement ended
	// until every period has been verified.
	RequireFinalValidation bool
}

// NewAccountant creates an Accountant.
func NewAccountant(l ledger.Ledger, clock period.Clock, requireFinal bool) *Accountant {
	return &Accountant{Ledger: l, Clock: clock, RequireFinalValidation: requireFinal}
}

// Receipt describes a completed stake or withdrawal.
type Receipt struct {
	AgreementID uuid.UUID     `json:"agreement_id"`
	Staker      model.Account `json:"staker"`
	Side        model.Side    `json:"side"`
	Phase       string        `json:"phase"`

	// Collateral deposited (stake) or owed (withdraw).
	Amount uint64 `json:"amount"`
	// Claim tokens minted (stake) or burned (withdraw).
	Shares uint64 `json:"shares"`

	StakerAmount uint64 `json:"staker_amount,omitempty"`
	DeployerFee  uint64 `json:"deployer_fee,omitempty"`
	ProtocolFee  uint64 `json:"protocol_fee,omitempty"`

	Lockup model.Lockup `json:"lockup"`
	Ops    []ledger.Op  `json:"-"`
}

// Stake deposits amount of collateral on side and mints claim tokens to
// staker.
func (a *Accountant) Stake(ctx context.Context, ag *model.Agreement, staker model.Account, side model.Side, amount uint64) (*model.Agreement, *Receipt, error) {
	if amount == 0 {
		return nil, nil, model.ErrStakeIsZero
	}
	phase := period.PhaseAt(ag.Schedule, a.Clock.Now())
	if phase.Kind == model.PhaseEnded {
		return nil, nil, model.ErrCannotStakeAfterSlaEnded
	}

	staged := ag.Clone()
	pool, supply := staged.Pool(side), staged.Shares(side)

	shares, err := calculator.SharesToMint(amount, pool, supply)
	if err != nil {
		return nil, nil, err
	}
	if shares == 0 {
		return nil, nil, model.ErrStakeIsZero.Wrapf("%d tokens mint no claim tokens at pool %d / supply %d", amount, pool, supply)
	}
	newPool, err := calculator.Add(pool, amount)
	if err != nil {
		return nil, nil, err
	}
	newSupply, err := calculator.Add(supply, shares)
	if err != nil {
		return nil, nil, err
	}
	staged.SetPool(side, newPool)
	staged.SetShares(side, newSupply)

	if side == model.SideUser {
		if err := RequireCollateral(staged); err != nil {
			return nil, nil, err
		}
	}

	l := staged.Lockup(staker, side)
	if err := lockup.RecordStake(&l, shares, phase); err != nil {
		return nil, nil, err
	}
	staged.SetLockup(staker, side, l)

	vault := ledger.VaultOf(ag.ID)
	applied, err := ledger.Execute(ctx, a.Ledger, []ledger.Op{
		ledger.TransferOp(ag.Mint, staker, vault.Pool(side), amount),
		ledger.MintOp(vault.ShareToken(side), staker, shares),
	})
	if err != nil {
		return nil, nil, err
	}

	return staged, &Receipt{
		AgreementID: ag.ID,
		Staker:      staker,
		Side:        side,
		Phase:       phase.String(),
		Amount:      amount,
		Shares:      shares,
		Lockup:      l,
		Ops:         applied,
	}, nil
}

// Withdraw burns burn claim tokens of staker on side and pays out the
// collateral they are worth, minus deployer and protocol fees.
func (a *Accountant) Withdraw(ctx context.Context, ag *model.Agreement, staker model.Account, side model.Side, burn uint64, gov model.Governance) (*model.Agreement, *Receipt, error) {
	if burn == 0 {
		return nil, nil, model.ErrWithdrawalIsZero
	}
	phase := period.PhaseAt(ag.Schedule, a.Clock.Now())
	if phase.Kind == model.PhaseEnded && a.RequireFinalValidation && !ag.Statuses.AllVerified() {
		return nil, nil, model.ErrUnverifiedPeriods.Wrapf("pending periods %v", ag.Statuses.Pending())
	}

	staged := ag.Clone()
	l := staged.Lockup(staker, side)
	if err := lockup.Advance(&l, phase); err != nil {
		return nil, nil, err
	}

	pool, supply := staged.Pool(side), staged.Shares(side)
	owed, err := calculator.TokensOwed(burn, pool, supply)
	if err != nil {
		return nil, nil, err
	}
	if owed > pool {
		return nil, nil, model.ErrInsufficientCollateral.Wrapf("owed %d exceeds pool %d", owed, pool)
	}
	newSupply, err := calculator.Sub(supply, burn)
	if err != nil {
		return nil, nil, model.ErrNoAvailableTokensForWithdrawal.Wrapf("burning %d of %d claim tokens", burn, supply)
	}
	staged.SetPool(side, pool-owed)
	staged.SetShares(side, newSupply)

	if phase.Kind != model.PhaseEnded {
		if err := RequireCollateral(staged); err != nil {
			return nil, nil, err
		}
	}

	if err := lockup.Withdraw(&l, burn); err != nil {
		return nil, nil, err
	}
	staged.SetLockup(staker, side, l)

	deployerFee, err := calculator.MulRateFloor(owed, gov.DeployerRewardRate)
	if err != nil {
		return nil, nil, err
	}
	protocolFee, err := calculator.MulRateFloor(owed, gov.ProtocolRewardRate)
	if err != nil {
		return nil, nil, err
	}
	fees, err := calculator.Add(deployerFee, protocolFee)
	if err != nil {
		return nil, nil, err
	}
	stakerAmount, err := calculator.Sub(owed, fees)
	if err != nil {
		return nil, nil, model.ErrNonValidGovernanceParameters.Wrapf("fees %d exceed owed %d", fees, owed)
	}

	vault := ledger.VaultOf(ag.ID)
	from := vault.Pool(side)
	applied, err := ledger.Execute(ctx, a.Ledger, []ledger.Op{
		ledger.BurnOp(vault.ShareToken(side), staker, burn),
		ledger.TransferOp(ag.Mint, from, ag.Deployer, deployerFee),
		ledger.TransferOp(ag.Mint, from, ag.Protocol, protocolFee),
		ledger.TransferOp(ag.Mint, from, staker, stakerAmount),
	})
	if err != nil {
		return nil, nil, err
	}

	return staged, &Receipt{
		AgreementID:  ag.ID,
		Staker:       staker,
		Side:         side,
		Phase:        phase.String(),
		Amount:       owed,
		Shares:       burn,
		StakerAmount: stakerAmount,
		DeployerFee:  deployerFee,
		ProtocolFee:  protocolFee,
		Lockup:       l,
		Ops:          applied,
	}, nil
}
