package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/model"
)

// ErrInsufficientBalance is returned when an account cannot cover a debit.
var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	token   model.Token
	account model.Account
}

// Memory is an in-process balance book implementing Ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[balanceKey]uint64
	supply   map[model.Token]uint64
}

// NewMemory returns an empty balance book.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]uint64),
		supply:   make(map[model.Token]uint64),
	}
}

// Credit funds account out of thin air. It counts toward the token supply.
func (m *Memory) Credit(token model.Token, account model.Account, amount uint64) error {
	return m.Mint(context.Background(), token, account, amount)
}

// Balance returns the holdings of account in token.
func (m *Memory) Balance(token model.Token, account model.Account) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{token, account}]
}

// Supply returns the outstanding amount of token.
func (m *Memory) Supply(token model.Token) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply[token]
}

// Holders lists accounts with a positive balance of token, sorted.
func (m *Memory) Holders(token model.Token) []model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Account
	for k, v := range m.balances {
		if k.token == token && v > 0 {
			out = append(out, k.account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Memory) Transfer(ctx context.Context, token model.Token, from, to model.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src := balanceKey{token, from}
	dst := balanceKey{token, to}
	if m.balances[src] < amount {
		return fmt.Errorf("%s holds %d %s, needs %d: %w", from, m.balances[src], token, amount, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	credited, err := calculator.Add(m.balances[dst], amount)
	if err != nil {
		return err
	}
	m.balances[src] -= amount
	m.balances[dst] = credited
	return nil
}

func (m *Memory) Mint(ctx context.Context, token model.Token, to model.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	supply, err := calculator.Add(m.supply[token], amount)
	if err != nil {
		return err
	}
	dst := balanceKey{token, to}
	credited, err := calculator.Add(m.balances[dst], amount)
	if err != nil {
		return err
	}
	m.supply[token] = supply
	m.balances[dst] = credited
	return nil
}

func (m *Memory) Burn(ctx context.Context, token model.Token, from model.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src := balanceKey{token, from}
	if m.balances[src] < amount {
		return fmt.Errorf("%s holds %d %s, burning %d: %w", from, m.balances[src], token, amount, ErrInsufficientBalance)
	}
	m.balances[src] -= amount
	m.supply[token] -= amount
	return nil
}
