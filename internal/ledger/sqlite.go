package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"cosmossdk.io/log"
	_ "modernc.org/sqlite"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/model"
)

// Credit is one genesis balance.
type Credit struct {
	Token   model.Token
	Account model.Account
	Amount  uint64
}

// SQLite is a durable balance book implementing Ledger. Every call runs in
// its own transaction. Amounts are stored as decimal text so the full uint64
// range survives.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex
	logger log.Logger
}

// NewSQLite opens (or creates) the ledger tables in the database at dbPath.
func NewSQLite(dbPath string, logger log.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &SQLite{db: db, logger: logger.With("module", "ledger")}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.logger.Info("sqlite ledger opened", "path", dbPath)
	return l, nil
}

func (l *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_balances (
			token   TEXT NOT NULL,
			account TEXT NOT NULL,
			amount  TEXT NOT NULL,
			PRIMARY KEY (token, account)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_supply (
			token  TEXT PRIMARY KEY,
			amount TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Seed applies genesis credits once per database. It reports whether the
// credits were applied on this call.
func (l *SQLite) Seed(ctx context.Context, credits []Credit) (bool, error) {
	applied := false
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var v string
		err := tx.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = 'genesis'`).Scan(&v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read genesis marker: %w", err)
		}
		for _, c := range credits {
			if err := mint(ctx, tx, c.Token, c.Account, c.Amount); err != nil {
				return fmt.Errorf("credit %s %s: %w", c.Account, c.Token, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_meta (key, value) VALUES ('genesis', ?)`,
			strconv.Itoa(len(credits))); err != nil {
			return fmt.Errorf("write genesis marker: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Balance returns the holdings of account in token.
func (l *SQLite) Balance(ctx context.Context, token model.Token, account model.Account) (uint64, error) {
	return readAmount(ctx, l.db, `SELECT amount FROM ledger_balances WHERE token = ? AND account = ?`, string(token), string(account))
}

// Supply returns the outstanding amount of token.
func (l *SQLite) Supply(ctx context.Context, token model.Token) (uint64, error) {
	return readAmount(ctx, l.db, `SELECT amount FROM ledger_supply WHERE token = ?`, string(token))
}

func (l *SQLite) Transfer(ctx context.Context, token model.Token, from, to model.Account, amount uint64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		have, err := readAmount(ctx, tx, `SELECT amount FROM ledger_balances WHERE token = ? AND account = ?`, string(token), string(from))
		if err != nil {
			return err
		}
		if have < amount {
			return fmt.Errorf("%s holds %d %s, needs %d: %w", from, have, token, amount, ErrInsufficientBalance)
		}
		if from == to {
			return nil
		}
		if err := addBalance(ctx, tx, token, to, amount); err != nil {
			return err
		}
		return setBalance(ctx, tx, token, from, have-amount)
	})
}

func (l *SQLite) Mint(ctx context.Context, token model.Token, to model.Account, amount uint64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		return mint(ctx, tx, token, to, amount)
	})
}

func (l *SQLite) Burn(ctx context.Context, token model.Token, from model.Account, amount uint64) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		have, err := readAmount(ctx, tx, `SELECT amount FROM ledger_balances WHERE token = ? AND account = ?`, string(token), string(from))
		if err != nil {
			return err
		}
		if have < amount {
			return fmt.Errorf("%s holds %d %s, burning %d: %w", from, have, token, amount, ErrInsufficientBalance)
		}
		supply, err := readAmount(ctx, tx, `SELECT amount FROM ledger_supply WHERE token = ?`, string(token))
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, token, from, have-amount); err != nil {
			return err
		}
		return setSupply(ctx, tx, token, supply-amount)
	})
}

func (l *SQLite) Close() error {
	l.logger.Info("closing sqlite ledger")
	return l.db.Close()
}

func (l *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readAmount(ctx context.Context, q querier, query string, args ...any) (uint64, error) {
	var s string
	err := q.QueryRowContext(ctx, query, args...).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read amount: %w", err)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode amount %q: %w", s, err)
	}
	return v, nil
}

func mint(ctx context.Context, tx *sql.Tx, token model.Token, to model.Account, amount uint64) error {
	supply, err := readAmount(ctx, tx, `SELECT amount FROM ledger_supply WHERE token = ?`, string(token))
	if err != nil {
		return err
	}
	next, err := calculator.Add(supply, amount)
	if err != nil {
		return err
	}
	if err := addBalance(ctx, tx, token, to, amount); err != nil {
		return err
	}
	return setSupply(ctx, tx, token, next)
}

func addBalance(ctx context.Context, tx *sql.Tx, token model.Token, account model.Account, amount uint64) error {
	have, err := readAmount(ctx, tx, `SELECT amount FROM ledger_balances WHERE token = ? AND account = ?`, string(token), string(account))
	if err != nil {
		return err
	}
	next, err := calculator.Add(have, amount)
	if err != nil {
		return err
	}
	return setBalance(ctx, tx, token, account, next)
}

func setBalance(ctx context.Context, tx *sql.Tx, token model.Token, account model.Account, amount uint64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_balances (token, account, amount) VALUES (?,?,?)
		ON CONFLICT(token, account) DO UPDATE SET amount = excluded.amount`,
		string(token), string(account), strconv.FormatUint(amount, 10),
	)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func setSupply(ctx context.Context, tx *sql.Tx, token model.Token, amount uint64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_supply (token, amount) VALUES (?,?)
		ON CONFLICT(token) DO UPDATE SET amount = excluded.amount`,
		string(token), strconv.FormatUint(amount, 10),
	)
	if err != nil {
		return fmt.Errorf("write supply: %w", err)
	}
	return nil
}
