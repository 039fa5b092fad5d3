package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/ledger/mocks"
	"SlaEscrow/internal/model"
)

const usdc model.Token = "usdc"

func TestExecute_AppliesInOrder(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	require.NoError(t, mem.Credit(usdc, "alice", 100))

	v := ledger.VaultOf(uuid.New())
	ops := []ledger.Op{
		ledger.TransferOp(usdc, "alice", v.Pool(model.SideUser), 60),
		ledger.MintOp(v.ShareToken(model.SideUser), "alice", 60),
		ledger.TransferOp(usdc, "alice", "bob", 0),
	}
	applied, err := ledger.Execute(ctx, mem, ops)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	assert.Equal(t, uint64(40), mem.Balance(usdc, "alice"))
	assert.Equal(t, uint64(60), mem.Balance(usdc, v.Pool(model.SideUser)))
	assert.Equal(t, uint64(60), mem.Supply(v.ShareToken(model.SideUser)))

	require.NoError(t, ledger.Revert(ctx, mem, applied))
	assert.Equal(t, uint64(100), mem.Balance(usdc, "alice"))
	assert.Zero(t, mem.Supply(v.ShareToken(model.SideUser)))
}

func TestExecute_RevertsOnFailure(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	require.NoError(t, mem.Credit(usdc, "alice", 100))

	ops := []ledger.Op{
		ledger.TransferOp(usdc, "alice", "pool", 70),
		ledger.MintOp("pt", "alice", 70),
		ledger.TransferOp(usdc, "alice", "pool", 70),
	}
	_, err := ledger.Execute(ctx, mem, ops)
	require.ErrorIs(t, err, model.ErrLedgerFailure)
	assert.Equal(t, uint64(100), mem.Balance(usdc, "alice"))
	assert.Zero(t, mem.Balance(usdc, "pool"))
	assert.Zero(t, mem.Supply("pt"))
}

func TestExecute_MockLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLedger(ctrl)
	ctx := context.Background()

	boom := errors.New("rpc down")
	gomock.InOrder(
		l.EXPECT().Transfer(gomock.Any(), usdc, model.Account("a"), model.Account("b"), uint64(5)).Return(nil),
		l.EXPECT().Burn(gomock.Any(), model.Token("ut"), model.Account("a"), uint64(3)).Return(boom),
		l.EXPECT().Transfer(gomock.Any(), usdc, model.Account("b"), model.Account("a"), uint64(5)).Return(nil),
	)

	_, err := ledger.Execute(ctx, l, []ledger.Op{
		ledger.TransferOp(usdc, "a", "b", 5),
		ledger.BurnOp("ut", "a", 3),
	})
	require.ErrorIs(t, err, model.ErrLedgerFailure)
}

func TestOp_Inverse(t *testing.T) {
	assert.Equal(t, ledger.BurnOp("pt", "a", 1), ledger.MintOp("pt", "a", 1).Inverse())
	assert.Equal(t, ledger.MintOp("pt", "a", 1), ledger.BurnOp("pt", "a", 1).Inverse())
	assert.Equal(t, ledger.TransferOp(usdc, "b", "a", 1), ledger.TransferOp(usdc, "a", "b", 1).Inverse())
}

func TestMemory_InsufficientBalance(t *testing.T) {
	mem := ledger.NewMemory()
	err := mem.Transfer(context.Background(), usdc, "nobody", "a", 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	err = mem.Burn(context.Background(), usdc, "nobody", 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestVault_Distinct(t *testing.T) {
	v := ledger.VaultOf(uuid.New())
	assert.NotEqual(t, v.Pool(model.SideProvider), v.Pool(model.SideUser))
	assert.NotEqual(t, v.ShareToken(model.SideProvider), v.ShareToken(model.SideUser))
	assert.NotEqual(t, v.Fees(), v.Pool(model.SideUser))
}
