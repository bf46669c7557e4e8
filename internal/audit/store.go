package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/etl"
)

// insertBatchSize keeps a multi-row insert under SQLite's bound parameter limit.
const insertBatchSize = 100

// Store records correction runs in PostgreSQL or SQLite
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ etl.RunRecorder = (*Store)(nil)

// NewStore creates a new audit store instance
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	if config.Driver != DriverPostgres && config.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported audit driver: %s", config.Driver)
	}

	db, err := sqlx.Connect(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("driver", config.Driver),
		zap.String("dsn", maskDatabaseURL(config.DSN)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

// initialize checks the connection and creates missing tables
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range schema(s.db.DriverName()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

func schema(driver string) []string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id          TEXT PRIMARY KEY,
			input_file      TEXT NOT NULL,
			output_file     TEXT NOT NULL,
			log_file        TEXT NOT NULL DEFAULT '',
			provider        TEXT NOT NULL,
			records_read    BIGINT NOT NULL DEFAULT 0,
			records_checked BIGINT NOT NULL DEFAULT 0,
			records_changed BIGINT NOT NULL DEFAULT 0,
			corrections     BIGINT NOT NULL DEFAULT 0,
			started_at      TIMESTAMP NOT NULL,
			finished_at     TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS corrections (
			` + idColumn + `,
			run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			record_index INTEGER NOT NULL,
			record_id    TEXT NOT NULL,
			word         TEXT NOT NULL,
			replacement  TEXT NOT NULL,
			position     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_corrections_run ON corrections (run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_corrections_pair ON corrections (word, replacement)`,
	}
}

// BeginRun inserts an unfinished run
func (s *Store) BeginRun(ctx context.Context, run *Run) error {
	return s.beginRun(ctx, s.db, run)
}

// InsertCorrections stores corrections in multi-row batches
func (s *Store) InsertCorrections(ctx context.Context, rows []CorrectionRow) error {
	return s.insertCorrections(ctx, s.db, rows)
}

// FinishRun stores final counters and the completion time of a run
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	return s.finishRun(ctx, s.db, run)
}

// RecordRun stores a finished pipeline run and its corrections in one transaction.
func (s *Store) RecordRun(ctx context.Context, result *etl.ProcessingResult, corrections []etl.Correction) error {
	run := &Run{
		RunID:          result.RunID,
		InputFile:      result.InputPath,
		OutputFile:     result.OutputPath,
		LogFile:        result.LogPath,
		Provider:       result.Provider,
		RecordsRead:    result.RecordsRead,
		RecordsChecked: result.RecordsChecked,
		RecordsChanged: result.RecordsChanged,
		Corrections:    result.Corrections,
		StartedAt:      result.StartedAt,
	}
	if !result.FinishedAt.IsZero() {
		finished := result.FinishedAt
		run.FinishedAt = &finished
	}

	rows := make([]CorrectionRow, len(corrections))
	for i, c := range corrections {
		rows[i] = CorrectionRow{
			RunID:       result.RunID,
			RecordIndex: c.Record,
			RecordID:    c.RecordID,
			Word:        c.Word,
			Replacement: c.Replacement,
			Position:    c.Position,
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.beginRun(ctx, tx, run); err != nil {
		return err
	}
	if err := s.insertCorrections(ctx, tx, rows); err != nil {
		return err
	}
	if err := s.finishRun(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("Run recorded",
		zap.String("run_id", run.RunID),
		zap.Int("corrections", len(rows)))

	return nil
}

func (s *Store) beginRun(ctx context.Context, db sqlx.ExtContext, run *Run) error {
	query := `
		INSERT INTO runs (run_id, input_file, output_file, log_file, provider, started_at)
		VALUES (:run_id, :input_file, :output_file, :log_file, :provider, :started_at)`

	started := *run
	started.StartedAt = run.StartedAt.UTC()
	if _, err := sqlx.NamedExecContext(ctx, db, query, &started); err != nil {
		s.logger.Error("Failed to insert run", zap.String("run_id", run.RunID), zap.Error(err))
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *Store) insertCorrections(ctx context.Context, db sqlx.ExtContext, rows []CorrectionRow) error {
	query := `
		INSERT INTO corrections (run_id, record_index, record_id, word, replacement, position)
		VALUES (:run_id, :record_index, :record_id, :word, :replacement, :position)`

	for i := 0; i < len(rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(rows))
		if _, err := sqlx.NamedExecContext(ctx, db, query, rows[i:end]); err != nil {
			s.logger.Error("Batch insert failed", zap.Int("offset", i), zap.Error(err))
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}
	return nil
}

func (s *Store) finishRun(ctx context.Context, db sqlx.ExtContext, run *Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}

	query := db.Rebind(`
		UPDATE runs
		SET records_read = ?, records_checked = ?, records_changed = ?, corrections = ?, finished_at = ?
		WHERE run_id = ?`)

	res, err := db.ExecContext(ctx, query,
		run.RecordsRead,
		run.RecordsChecked,
		run.RecordsChanged,
		run.Corrections,
		finished,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %s", run.RunID)
	}
	return nil
}

// GetRun returns a single run by ID
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	query := s.db.Rebind(`SELECT * FROM runs WHERE run_id = ?`)
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// RecentRuns returns the latest runs, newest first
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	query := s.db.Rebind(`SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetStats returns totals and the topN most frequent corrections
func (s *Store) GetStats(ctx context.Context, topN int) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(records_checked), 0),
			COALESCE(SUM(records_changed), 0)
		FROM runs`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalRuns,
		&stats.RecordsChecked,
		&stats.RecordsChanged,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.TotalCorrections, "SELECT COUNT(*) FROM corrections"); err != nil {
		return nil, fmt.Errorf("failed to count corrections: %w", err)
	}

	if topN > 0 {
		pairsQuery := s.db.Rebind(`
			SELECT word, replacement, COUNT(*) AS count
			FROM corrections
			GROUP BY word, replacement
			ORDER BY count DESC, word ASC
			LIMIT ?`)
		if err := s.db.SelectContext(ctx, &stats.TopPairs, pairsQuery, topN); err != nil {
			return nil, fmt.Errorf("failed to get top corrections: %w", err)
		}
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon < 0 || strings.HasPrefix(userPart[colon:], "://") {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
