// Package ledger moves tokens on behalf of escrow agreements.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

//go:generate mockgen -source=ledger.go -destination=mocks/ledger.go -package=mocks

// Ledger is the token movement boundary. Implementations must apply each
// call atomically: either the full amount moves or nothing does.
type Ledger interface {
	Transfer(ctx context.Context, token model.Token, from, to model.Account, amount uint64) error
	Mint(ctx context.Context, token model.Token, to model.Account, amount uint64) error
	Burn(ctx context.Context, token model.Token, from model.Account, amount uint64) error
}

// Vault is the authority an agreement holds over its pools and claim-token
// mints. It is derived from the agreement id and only this package turns
// it into ledger accounts.
type Vault struct {
	id uuid.UUID
}

// VaultOf returns the vault owned by agreement id.
func VaultOf(id uuid.UUID) Vault { return Vault{id: id} }

// Pool is the collateral account of one side.
func (v Vault) Pool(side model.Side) model.Account {
	return model.Account("vault/" + v.id.String() + "/" + string(side))
}

// Fees holds the validation fee deposit.
func (v Vault) Fees() model.Account {
	return model.Account("vault/" + v.id.String() + "/fees")
}

// ShareToken is the claim-token mint of one side (PT for provider, UT for user).
func (v Vault) ShareToken(side model.Side) model.Token {
	prefix := "ut"
	if side == model.SideProvider {
		prefix = "pt"
	}
	return model.Token(prefix + "/" + v.id.String())
}
