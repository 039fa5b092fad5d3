package ledger

import (
	"context"
	"errors"
	"fmt"

	"SlaEscrow/internal/model"
)

// OpKind names a ledger call.
type OpKind string

const (
	OpTransfer OpKind = "transfer"
	OpMint     OpKind = "mint"
	OpBurn     OpKind = "burn"
)

// Op is one planned ledger call.
type Op struct {
	Kind   OpKind        `json:"kind"`
	Token  model.Token   `json:"token"`
	From   model.Account `json:"from,omitempty"`
	To     model.Account `json:"to,omitempty"`
	Amount uint64        `json:"amount"`
}

// TransferOp plans a transfer.
func TransferOp(token model.Token, from, to model.Account, amount uint64) Op {
	return Op{Kind: OpTransfer, Token: token, From: from, To: to, Amount: amount}
}

// MintOp plans a mint.
func MintOp(token model.Token, to model.Account, amount uint64) Op {
	return Op{Kind: OpMint, Token: token, To: to, Amount: amount}
}

// BurnOp plans a burn.
func BurnOp(token model.Token, from model.Account, amount uint64) Op {
	return Op{Kind: OpBurn, Token: token, From: from, Amount: amount}
}

// Inverse returns the op that undoes o.
func (o Op) Inverse() Op {
	switch o.Kind {
	case OpTransfer:
		return TransferOp(o.Token, o.To, o.From, o.Amount)
	case OpMint:
		return BurnOp(o.Token, o.To, o.Amount)
	default:
		return MintOp(o.Token, o.From, o.Amount)
	}
}

func (o Op) apply(ctx context.Context, l Ledger) error {
	switch o.Kind {
	case OpTransfer:
		return l.Transfer(ctx, o.Token, o.From, o.To, o.Amount)
	case OpMint:
		return l.Mint(ctx, o.Token, o.To, o.Amount)
	case OpBurn:
		return l.Burn(ctx, o.Token, o.From, o.Amount)
	default:
		return fmt.Errorf("unknown op %q", o.Kind)
	}
}

func (o Op) String() string {
	switch o.Kind {
	case OpTransfer:
		return fmt.Sprintf("transfer %d %s %s->%s", o.Amount, o.Token, o.From, o.To)
	case OpMint:
		return fmt.Sprintf("mint %d %s ->%s", o.Amount, o.Token, o.To)
	default:
		return fmt.Sprintf("burn %d %s %s->", o.Amount, o.Token, o.From)
	}
}

// Execute applies ops in order. Zero-amount ops are skipped. If any op
// fails, the ops already applied are reverted in reverse order and the
// failure is returned wrapped in ErrLedgerFailure. The returned slice holds
// the ops that were applied, for a later Revert.
func Execute(ctx context.Context, l Ledger, ops []Op) ([]Op, error) {
	applied := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op.Amount == 0 {
			continue
		}
		if err := op.apply(ctx, l); err != nil {
			cause := model.ErrLedgerFailure.Wrapf("%s: %v", op, err)
			if rerr := Revert(context.WithoutCancel(ctx), l, applied); rerr != nil {
				return nil, errors.Join(cause, rerr)
			}
			return nil, cause
		}
		applied = append(applied, op)
	}
	return applied, nil
}

// Revert undoes applied ops in reverse order. Every inverse is attempted;
// failures are joined.
func Revert(ctx context.Context, l Ledger, applied []Op) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		inv := applied[i].Inverse()
		if err := inv.apply(ctx, l); err != nil {
			errs = append(errs, fmt.Errorf("revert %s: %w", applied[i], err))
		}
	}
	return errors.Join(errs...)
}
