package fund

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/ledger/mocks"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/period"
)

const usdc model.Token = "usdc"

func newAgreement(leverage string) *model.Agreement {
	return &model.Agreement{
		ID:       uuid.New(),
		Slo:      model.Slo{Value: math.LegacyNewDec(99), Comparator: model.GreaterOrEqual},
		Leverage: math.LegacyMustNewDecFromStr(leverage),
		Mint:     usdc,
		Schedule: model.Schedule{Start: 100, Length: model.CustomLength(50), Count: 10},
		Deployer: "deployer",
		Protocol: "protocol",
		Statuses: model.NewStatusRegistry(10),
	}
}

func governance() model.Governance {
	return model.Governance{
		ProtocolRewardRate: math.LegacyMustNewDecFromStr("0.01"),
		DeployerRewardRate: math.LegacyMustNewDecFromStr("0.02"),
		MaxLeverage:        math.LegacyNewDec(10),
	}
}

func fundedLedger(t *testing.T, accounts ...model.Account) *ledger.Memory {
	t.Helper()
	mem := ledger.NewMemory()
	for _, a := range accounts {
		require.NoError(t, mem.Credit(usdc, a, 1_000_000))
	}
	return mem
}

func TestStake_MintsSharesAndLocks(t *testing.T) {
	ctx := context.Background()
	mem := fundedLedger(t, "alice")
	acc := NewAccountant(mem, period.NewFixedClock(160), false)
	ag := newAgreement("1")

	staged, rcpt, err := acc.Stake(ctx, ag, "alice", model.SideProvider, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), staged.ProviderPool)
	assert.Equal(t, uint64(1000), staged.ProviderShares)
	assert.Equal(t, uint64(1000), rcpt.Shares)
	assert.Equal(t, model.Lockup{LockedCurrent: 1000, LockedFromPeriod: 1}, staged.Lockup("alice", model.SideProvider))
	assert.Zero(t, ag.ProviderPool, "input agreement must stay untouched")

	vault := ledger.VaultOf(ag.ID)
	assert.Equal(t, uint64(1000), mem.Balance(usdc, vault.Pool(model.SideProvider)))
	assert.Equal(t, uint64(1000), mem.Balance(vault.ShareToken(model.SideProvider), "alice"))
}

func TestStake_ProportionalShares(t *testing.T) {
	ctx := context.Background()
	acc := NewAccountant(fundedLedger(t, "bob"), period.NewFixedClock(160), false)
	ag := newAgreement("1")
	ag.ProviderPool, ag.ProviderShares = 2000, 1000

	staged, rcpt, err := acc.Stake(ctx, ag, "bob", model.SideProvider, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), rcpt.Shares)
	assert.Equal(t, uint64(2500), staged.ProviderPool)
	assert.Equal(t, uint64(1250), staged.ProviderShares)
}

func TestStake_InsufficientCollateral(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLedger(ctrl)
	acc := NewAccountant(l, period.NewFixedClock(160), false)

	ag := newAgreement("1.0")
	ag.ProviderPool, ag.ProviderShares = 1000, 1000
	ag.UserPool, ag.UserShares = 900, 900

	_, _, err := acc.Stake(context.Background(), ag, "carol", model.SideUser, 200)
	require.ErrorIs(t, err, model.ErrInsufficientCollateral)
	assert.Equal(t, uint64(900), ag.UserPool)
}

func TestStake_Rejections(t *testing.T) {
	acc := NewAccountant(ledger.NewMemory(), period.NewFixedClock(1000), false)
	ag := newAgreement("1")

	_, _, err := acc.Stake(context.Background(), ag, "a", model.SideProvider, 0)
	require.ErrorIs(t, err, model.ErrStakeIsZero)

	_, _, err = acc.Stake(context.Background(), ag, "a", model.SideProvider, 10)
	require.ErrorIs(t, err, model.ErrCannotStakeAfterSlaEnded)
}

func TestStake_LedgerFailureLeavesAgreement(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLedger(ctrl)
	acc := NewAccountant(l, period.NewFixedClock(160), false)
	ag := newAgreement("1")
	vault := ledger.VaultOf(ag.ID)

	gomock.InOrder(
		l.EXPECT().Transfer(gomock.Any(), usdc, model.Account("alice"), vault.Pool(model.SideProvider), uint64(10)).Return(nil),
		l.EXPECT().Mint(gomock.Any(), vault.ShareToken(model.SideProvider), model.Account("alice"), uint64(10)).Return(errors.New("mint paused")),
		l.EXPECT().Transfer(gomock.Any(), usdc, vault.Pool(model.SideProvider), model.Account("alice"), uint64(10)).Return(nil),
	)

	staged, _, err := acc.Stake(context.Background(), ag, "alice", model.SideProvider, 10)
	require.ErrorIs(t, err, model.ErrLedgerFailure)
	assert.Nil(t, staged)
	assert.Zero(t, ag.ProviderPool)
	assert.Empty(t, ag.Lockups)
}

func TestWithdraw_PaysFees(t *testing.T) {
	ctx := context.Background()
	mem := fundedLedger(t, "alice")
	clock := period.NewFixedClock(160)
	acc := NewAccountant(mem, clock, false)
	ag := newAgreement("1")

	ag, _, err := acc.Stake(ctx, ag, "alice", model.SideProvider, 1000)
	require.NoError(t, err)

	_, _, err = acc.Withdraw(ctx, ag, "alice", model.SideProvider, 100, governance())
	require.ErrorIs(t, err, model.ErrNoAvailableTokensForWithdrawal)

	clock.Set(260) // period 3: stake from period 1 is released
	staged, rcpt, err := acc.Withdraw(ctx, ag, "alice", model.SideProvider, 1000, governance())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rcpt.Amount)
	assert.Equal(t, uint64(20), rcpt.DeployerFee)
	assert.Equal(t, uint64(10), rcpt.ProtocolFee)
	assert.Equal(t, uint64(970), rcpt.StakerAmount)
	assert.Zero(t, staged.ProviderPool)
	assert.Zero(t, staged.ProviderShares)

	assert.Equal(t, uint64(20), mem.Balance(usdc, "deployer"))
	assert.Equal(t, uint64(10), mem.Balance(usdc, "protocol"))
	assert.Equal(t, uint64(1_000_000-30), mem.Balance(usdc, "alice"))
}

func TestWithdraw_KeepsCollateral(t *testing.T) {
	ctx := context.Background()
	mem := fundedLedger(t, "p", "u")
	clock := period.NewFixedClock(50)
	acc := NewAccountant(mem, clock, false)
	ag := newAgreement("1")

	ag, _, err := acc.Stake(ctx, ag, "p", model.SideProvider, 1000)
	require.NoError(t, err)
	ag, _, err = acc.Stake(ctx, ag, "u", model.SideUser, 800)
	require.NoError(t, err)

	clock.Set(160)
	_, _, err = acc.Withdraw(ctx, ag, "p", model.SideProvider, 300, governance())
	require.ErrorIs(t, err, model.ErrInsufficientCollateral)

	staged, _, err := acc.Withdraw(ctx, ag, "p", model.SideProvider, 200, governance())
	require.NoError(t, err)
	assert.Equal(t, uint64(800), staged.ProviderPool)
}

func TestWithdraw_RequireFinalValidation(t *testing.T) {
	ctx := context.Background()
	mem := fundedLedger(t, "p")
	clock := period.NewFixedClock(50)
	acc := NewAccountant(mem, clock, true)
	ag := newAgreement("1")

	ag, _, err := acc.Stake(ctx, ag, "p", model.SideProvider, 1000)
	require.NoError(t, err)

	clock.Set(1000)
	_, _, err = acc.Withdraw(ctx, ag, "p", model.SideProvider, 1000, governance())
	require.ErrorIs(t, err, model.ErrUnverifiedPeriods)

	for i := uint32(0); i < ag.Schedule.Count; i++ {
		require.NoError(t, ag.Statuses.Set(i, model.Respected(math.LegacyNewDec(100))))
	}
	_, rcpt, err := acc.Withdraw(ctx, ag, "p", model.SideProvider, 1000, governance())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rcpt.Amount)
}

func TestWithdraw_Zero(t *testing.T) {
	acc := NewAccountant(ledger.NewMemory(), period.NewFixedClock(160), false)
	_, _, err := acc.Withdraw(context.Background(), newAgreement("1"), "a", model.SideUser, 0, governance())
	require.ErrorIs(t, err, model.ErrWithdrawalIsZero)
}

// Random stake/withdraw sequences keep the provider pool collateralized
// and never dilute the value of a claim token.
func TestAccountant_Invariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		mem := ledger.NewMemory()
		stakers := []model.Account{"s1", "s2", "s3"}
		for _, s := range stakers {
			if err := mem.Credit(usdc, s, 1<<40); err != nil {
				rt.Fatalf("credit: %v", err)
			}
		}
		clock := period.NewFixedClock(50)
		acc := NewAccountant(mem, clock, false)
		ag := newAgreement(rapid.SampledFrom([]string{"0.5", "1", "2.5"}).Draw(rt, "leverage"))

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			clock.Set(clock.Now().Unix() + int64(rapid.IntRange(0, 60).Draw(rt, "tick")))
			staker := rapid.SampledFrom(stakers).Draw(rt, "staker")
			side := rapid.SampledFrom([]model.Side{model.SideProvider, model.SideUser}).Draw(rt, "side")
			pool, supply := ag.Pool(side), ag.Shares(side)

			var next *model.Agreement
			var err error
			if rapid.Bool().Draw(rt, "stake") {
				amount := rapid.Uint64Range(1, 1<<20).Draw(rt, "amount")
				next, _, err = acc.Stake(ctx, ag, staker, side, amount)
			} else {
				burn := rapid.Uint64Range(1, 1<<20).Draw(rt, "burn")
				next, _, err = acc.Withdraw(ctx, ag, staker, side, burn, governance())
			}
			if err != nil {
				continue
			}
			if err := RequireCollateral(next); err != nil && period.PhaseAt(ag.Schedule, clock.Now()).Kind != model.PhaseEnded {
				rt.Fatalf("collateral broken: %v", err)
			}
			newPool, newSupply := next.Pool(side), next.Shares(side)
			if supply > 0 && newSupply > 0 {
				// newPool/newSupply >= pool/supply
				lhs := math.NewIntFromUint64(newPool).Mul(math.NewIntFromUint64(supply))
				rhs := math.NewIntFromUint64(pool).Mul(math.NewIntFromUint64(newSupply))
				if lhs.LT(rhs) {
					rt.Fatalf("value per share fell: %d/%d -> %d/%d", pool, supply, newPool, newSupply)
				}
			}
			ag = next
		}
	})
}
