package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"sync"

	"cosmossdk.io/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists agreement history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger log.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger log.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With("module", "recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deploy_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			agreement_id  TEXT NOT NULL,
			deployer      TEXT,
			slo_value     TEXT,
			slo_cmp       TEXT,
			leverage      TEXT,
			periods       INTEGER,
			oracle_source TEXT,
			fee_deposit   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deploy_agreement ON deploy_events(agreement_id)`,

		`CREATE TABLE IF NOT EXISTS stake_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			agreement_id TEXT NOT NULL,
			staker       TEXT,
			side         TEXT,
			phase        TEXT,
			amount       INTEGER,
			shares       INTEGER,
			pool_after   INTEGER,
			shares_after INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stake_agreement ON stake_events(agreement_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS withdraw_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			agreement_id  TEXT NOT NULL,
			staker        TEXT,
			side          TEXT,
			phase         TEXT,
			burned        INTEGER,
			owed          INTEGER,
			staker_amount INTEGER,
			deployer_fee  INTEGER,
			protocol_fee  INTEGER,
			pool_after    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdraw_agreement ON withdraw_events(agreement_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS validation_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			agreement_id   TEXT NOT NULL,
			period_id      INTEGER,
			status         TEXT,
			sli            TEXT,
			deviation      TEXT,
			reward         INTEGER,
			from_side      TEXT,
			provider_after INTEGER,
			user_after     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_agreement ON validation_events(agreement_id, period_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// amount binds a token amount. Values beyond int64 are stored as text.
func amount(v uint64) any {
	if v > math.MaxInt64 {
		return strconv.FormatUint(v, 10)
	}
	return int64(v)
}

func (r *SQLiteRecorder) RecordDeploy(evt *DeployEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO deploy_events
		(timestamp, agreement_id, deployer, slo_value, slo_cmp, leverage, periods, oracle_source, fee_deposit)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.AgreementID.String(), string(evt.Deployer),
		evt.Slo.Value.String(), string(evt.Slo.Comparator), evt.Leverage,
		evt.Periods, evt.OracleSource, amount(evt.FeeDeposit),
	)
	return err
}

func (r *SQLiteRecorder) RecordStake(evt *StakeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO stake_events
		(timestamp, agreement_id, staker, side, phase, amount, shares, pool_after, shares_after)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.AgreementID.String(), string(evt.Staker), string(evt.Side), evt.Phase,
		amount(evt.Amount), amount(evt.Shares), amount(evt.PoolAfter), amount(evt.SharesAfter),
	)
	return err
}

func (r *SQLiteRecorder) RecordWithdraw(evt *WithdrawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO withdraw_events
		(timestamp, agreement_id, staker, side, phase, burned, owed, staker_amount, deployer_fee, protocol_fee, pool_after)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.AgreementID.String(), string(evt.Staker), string(evt.Side), evt.Phase,
		amount(evt.Burned), amount(evt.Owed), amount(evt.StakerAmount),
		amount(evt.DeployerFee), amount(evt.ProtocolFee), amount(evt.PoolAfter),
	)
	return err
}

func (r *SQLiteRecorder) RecordValidation(evt *ValidationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO validation_events
		(timestamp, agreement_id, period_id, status, sli, deviation, reward, from_side, provider_after, user_after)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.AgreementID.String(), evt.PeriodID, string(evt.Status),
		evt.SLI, evt.Deviation, amount(evt.Reward), string(evt.From),
		amount(evt.ProviderAfter), amount(evt.UserAfter),
	)
	return err
}

// CountValidations returns how many validation events were recorded for
// an agreement.
func (r *SQLiteRecorder) CountValidations(agreementID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM validation_events WHERE agreement_id = ?`, agreementID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
