package audit

import (
	"time"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config contains database configuration
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite3
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Run is one row of the runs table
type Run struct {
	RunID          string     `db:"run_id" json:"run_id"`
	InputFile      string     `db:"input_file" json:"input_file"`
	OutputFile     string     `db:"output_file" json:"output_file"`
	LogFile        string     `db:"log_file" json:"log_file,omitempty"`
	Provider       string     `db:"provider" json:"provider"`
	RecordsRead    int64      `db:"records_read" json:"records_read"`
	RecordsChecked int64      `db:"records_checked" json:"records_checked"`
	RecordsChanged int64      `db:"records_changed" json:"records_changed"`
	Corrections    int64      `db:"corrections" json:"corrections"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// CorrectionRow is one applied correction
type CorrectionRow struct {
	RunID       string `db:"run_id" json:"run_id"`
	RecordIndex int    `db:"record_index" json:"record_index"`
	RecordID    string `db:"record_id" json:"record_id"`
	Word        string `db:"word" json:"word"`
	Replacement string `db:"replacement" json:"replacement"`
	Position    int    `db:"position" json:"position"`
}

// WordPair counts how often a word was replaced by the same replacement
type WordPair struct {
	Word        string `db:"word" json:"word"`
	Replacement string `db:"replacement" json:"replacement"`
	Count       int64  `db:"count" json:"count"`
}

// Stats represents audit database statistics
type Stats struct {
	TotalRuns        int64      `json:"total_runs"`
	RecordsChecked   int64      `json:"records_checked"`
	RecordsChanged   int64      `json:"records_changed"`
	TotalCorrections int64      `json:"total_corrections"`
	TopPairs         []WordPair `json:"top_pairs"`
}
