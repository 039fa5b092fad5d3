package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"SlaEscrow/internal/model"
)

// SQLite persists agreements as versioned JSON documents.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex
	logger log.Logger
}

// NewSQLite opens (or creates) the database at dbPath and runs migrations.
func NewSQLite(dbPath string, logger log.Logger) (*SQLite, error) {
	// the ledger shares this file, so writers wait instead of failing busy
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db, logger: logger.With("module", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agreements (
			id         TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			data       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agreements_created ON agreements(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, ag *model.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(ag)
	if err != nil {
		return fmt.Errorf("encode agreement: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO agreements (id, version, created_at, data)
		VALUES (?,?,?,?) ON CONFLICT(id) DO NOTHING`,
		ag.ID.String(), ag.Version, ag.CreatedAt.Unix(), string(data),
	)
	if err != nil {
		return fmt.Errorf("insert agreement: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert agreement: %w", err)
	} else if n == 0 {
		return model.ErrAgreementAlreadyRegistered.Wrap(ag.ID.String())
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (*model.Agreement, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM agreements WHERE id = ?`, id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load agreement %s: %w", id, err)
	}
	return decode(data)
}

func (s *SQLite) Save(ctx context.Context, ag *model.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *ag
	next.Version = ag.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode agreement: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE agreements SET version = ?, data = ?
		WHERE id = ? AND version = ?`,
		next.Version, string(data), ag.ID.String(), ag.Version,
	)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM agreements WHERE id = ?`, ag.ID.String()).Scan(&exists)
		if err == sql.ErrNoRows {
			return notFound(ag.ID)
		}
		return conflict(ag.ID, ag.Version)
	}
	ag.Version = next.Version
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]*model.Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM agreements ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var out []*model.Agreement
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		ag, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, ag)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

func decode(data string) (*model.Agreement, error) {
	var ag model.Agreement
	if err := json.Unmarshal([]byte(data), &ag); err != nil {
		return nil, fmt.Errorf("decode agreement: %w", err)
	}
	return &ag, nil
}
