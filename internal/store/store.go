// Package store persists trial results, score memory, and champion
// configs for the optimizer: sqlx with context-scoped timeouts and
// parameterized upsert queries. The default backend is an embedded,
// file-based modernc.org/sqlite database (no cgo); an optional
// github.com/lib/pq Postgres backend is offered for shared/multi-host
// studies.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/genesis-core/genesis-core/internal/circuit"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// Backend names a supported study-DB driver.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// TrialRecord is one optimizer trial's persisted result.
type TrialRecord struct {
	RunID               string    `db:"run_id" json:"run_id"`
	TrialNum            int       `db:"trial_num" json:"trial_num"`
	ParamFingerprint    string    `db:"param_fingerprint" json:"param_fingerprint"`
	Score               float64   `db:"score" json:"score"`
	MetricsJSON         string    `db:"metrics_json" json:"metrics_json"`
	ConstraintVerdict   string    `db:"constraint_verdict" json:"constraint_verdict"`
	EffectiveConfigHash string    `db:"effective_config_fingerprint" json:"effective_config_fingerprint"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// StudyDB is the single-writer study-database actor: workers submit
// trial results through it rather than opening their own connections.
// Concurrent writers share this one *StudyDB per process; cross-process
// contention is handled by the connection timeout below plus the
// database's own locking.
type StudyDB struct {
	db      *sqlx.DB
	timeout time.Duration
	breaker *circuit.Breaker
}

// Open connects to the study DB identified by backend/dsn and ensures
// the schema exists. For BackendSQLite, dsn is a filesystem path.
func Open(ctx context.Context, backend Backend, dsn string, connTimeout time.Duration) (*StudyDB, error) {
	driver := "sqlite"
	if backend == BackendPostgres {
		driver = "postgres"
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, cerrors.Transient(fmt.Sprintf("failed to open study db (%s)", backend), err)
	}
	s := &StudyDB{
		db:      db,
		timeout: connTimeout,
		breaker: circuit.New(circuit.Config{
			Name:            fmt.Sprintf("study-db-%s", backend),
			MaxFailures:     5,
			OpenTimeout:     30 * time.Second,
			HalfOpenMaxCall: 1,
		}),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StudyDB) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	schema := `
CREATE TABLE IF NOT EXISTS trials (
	run_id TEXT NOT NULL,
	trial_num INTEGER NOT NULL,
	param_fingerprint TEXT NOT NULL,
	score REAL NOT NULL,
	metrics_json TEXT NOT NULL,
	constraint_verdict TEXT NOT NULL,
	effective_config_fingerprint TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, trial_num)
);
CREATE INDEX IF NOT EXISTS idx_trials_fingerprint ON trials(param_fingerprint);
CREATE TABLE IF NOT EXISTS champions (
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	merged_config TEXT NOT NULL,
	score REAL NOT NULL,
	runtime_version TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	promoted_at TIMESTAMP NOT NULL,
	PRIMARY KEY (symbol, timeframe)
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return cerrors.Transient("failed to migrate study db schema", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *StudyDB) Close() error { return s.db.Close() }

// SaveTrial inserts or replaces a trial record keyed by (run_id, trial_num).
// The write runs through the study-DB breaker: repeated failures (a
// locked or unreachable database) trip it so a worker pool fails each
// subsequent SaveTrial fast instead of piling up on the same timeout.
func (s *StudyDB) SaveTrial(ctx context.Context, t TrialRecord) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		query := s.db.Rebind(`
			INSERT INTO trials (run_id, trial_num, param_fingerprint, score, metrics_json, constraint_verdict, effective_config_fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, trial_num) DO UPDATE SET
				param_fingerprint = excluded.param_fingerprint, score = excluded.score,
				metrics_json = excluded.metrics_json, constraint_verdict = excluded.constraint_verdict,
				effective_config_fingerprint = excluded.effective_config_fingerprint, created_at = excluded.created_at
		`)
		_, err := s.db.ExecContext(ctx, query, t.RunID, t.TrialNum, t.ParamFingerprint, t.Score, t.MetricsJSON, t.ConstraintVerdict, t.EffectiveConfigHash, t.CreatedAt)
		return nil, err
	})
	if err != nil {
		if circuit.IsOpenError(err) {
			return cerrors.Transient("study db breaker open: save trial rejected", err)
		}
		return cerrors.Transient("failed to save trial", err)
	}
	return nil
}

// GetByFingerprint implements score-memory lookup against persisted
// trials: presenting the same param fingerprint returns the cached
// trial without re-running the backtest. Also runs through the
// study-DB breaker.
func (s *StudyDB) GetByFingerprint(ctx context.Context, fingerprint string) (*TrialRecord, bool, error) {
	// sql.ErrNoRows is an expected outcome (most fingerprints are new),
	// not a database failure, so it is translated to a nil result
	// rather than returned from the closure: counting it as a breaker
	// failure would trip the breaker on ordinary cache misses.
	rec, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		query := s.db.Rebind(`
			SELECT run_id, trial_num, param_fingerprint, score, metrics_json, constraint_verdict, effective_config_fingerprint, created_at
			FROM trials WHERE param_fingerprint = ? ORDER BY created_at DESC LIMIT 1
		`)
		var r TrialRecord
		if err := s.db.GetContext(ctx, &r, query, fingerprint); err != nil {
			if err == sql.ErrNoRows {
				return (*TrialRecord)(nil), nil
			}
			return nil, err
		}
		return &r, nil
	})
	if err != nil {
		if circuit.IsOpenError(err) {
			return nil, false, cerrors.Transient("study db breaker open: fingerprint lookup rejected", err)
		}
		return nil, false, cerrors.Transient("failed to query trial by fingerprint", err)
	}
	result, _ := rec.(*TrialRecord)
	if result == nil {
		return nil, false, nil
	}
	return result, true, nil
}

// ListTrials returns all trials for a run, ordered by trial number.
func (s *StudyDB) ListTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := s.db.Rebind(`
		SELECT run_id, trial_num, param_fingerprint, score, metrics_json, constraint_verdict, effective_config_fingerprint, created_at
		FROM trials WHERE run_id = ? ORDER BY trial_num ASC
	`)
	var recs []TrialRecord
	if err := s.db.SelectContext(ctx, &recs, query, runID); err != nil {
		return nil, cerrors.Transient("failed to list trials", err)
	}
	return recs, nil
}

// Champion is the persisted best-known parameter set for (symbol, timeframe).
type Champion struct {
	Symbol         string    `db:"symbol" json:"symbol"`
	Timeframe      string    `db:"timeframe" json:"timeframe"`
	MergedConfig   string    `db:"merged_config" json:"merged_config"`
	Score          float64   `db:"score" json:"score"`
	RuntimeVersion string    `db:"runtime_version" json:"runtime_version"`
	Fingerprint    string    `db:"fingerprint" json:"fingerprint"`
	PromotedAt     time.Time `db:"promoted_at" json:"promoted_at"`
}

// GetChampion returns the current champion for (symbol, timeframe), if any.
func (s *StudyDB) GetChampion(ctx context.Context, symbol, timeframe string) (*Champion, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := s.db.Rebind(`
		SELECT symbol, timeframe, merged_config, score, runtime_version, fingerprint, promoted_at
		FROM champions WHERE symbol = ? AND timeframe = ?
	`)
	var c Champion
	err := s.db.GetContext(ctx, &c, query, symbol, timeframe)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cerrors.Transient("failed to query champion", err)
	}
	return &c, true, nil
}

// PromoteChampion upserts the champion for (symbol, timeframe). Called
// only once the promotion condition holds.
func (s *StudyDB) PromoteChampion(ctx context.Context, c Champion) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	del := s.db.Rebind(`DELETE FROM champions WHERE symbol = ? AND timeframe = ?`)
	if _, err := s.db.ExecContext(ctx, del, c.Symbol, c.Timeframe); err != nil {
		return cerrors.Transient("failed to clear prior champion", err)
	}
	ins := s.db.Rebind(`
		INSERT INTO champions (symbol, timeframe, merged_config, score, runtime_version, fingerprint, promoted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, ins, c.Symbol, c.Timeframe, c.MergedConfig, c.Score, c.RuntimeVersion, c.Fingerprint, c.PromotedAt)
	if err != nil {
		return cerrors.Transient("failed to promote champion", err)
	}
	return nil
}

// MarshalMetrics is a small convenience used by callers building a
// TrialRecord from a metrics struct.
func MarshalMetrics(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", cerrors.FatalData("failed to marshal trial metrics", err)
	}
	return string(data), nil
}
