package etl

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/speller/internal/patch"
)

// TextRecord is one input row. Only Text is changed by correction.
type TextRecord struct {
	ID        string `csv:"id" parquet:"id" json:"id"`
	Title     string `csv:"title" parquet:"title" json:"title"`
	Text      string `csv:"text" parquet:"text" json:"text"`
	Cluster   string `csv:"cluster" parquet:"cluster" json:"cluster"`
	Time      string `csv:"time" parquet:"time" json:"time"`
	Publisher string `csv:"publisher" parquet:"publisher" json:"publisher"`
}

// columnCount is the number of fields in a delimited row.
const columnCount = 6

// Correction is an applied correction tagged with the record it belongs to.
type Correction struct {
	Record   int    `json:"record"`
	RecordID string `json:"record_id"`
	patch.Entry
}

// Outcome is the result of correcting a record set.
type Outcome struct {
	Records     []TextRecord
	Corrections []Correction
	Changed     int
}

// Log renders the corrections as a run log.
func (o *Outcome) Log() *patch.Log {
	log := &patch.Log{}
	for _, c := range o.Corrections {
		log.Append(c.Entry)
	}
	return log
}

// Options controls a single pipeline run
type Options struct {
	OutputPath      string `yaml:"output" mapstructure:"output"` // spelled.csv
	LogPath         string `yaml:"log" mapstructure:"log"`       // empty: no log file
	Limit           int    `yaml:"number" mapstructure:"number"` // <= 0: all records
	FilterByCluster bool   `yaml:"filter" mapstructure:"filter"` // keep clustered records only
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	RunID          string        `json:"run_id"`
	Provider       string        `json:"provider"`
	InputPath      string        `json:"input_path"`
	OutputPath     string        `json:"output_path"`
	LogPath        string        `json:"log_path,omitempty"`
	RecordsRead    int64         `json:"records_read"`
	RecordsChecked int64         `json:"records_checked"`
	RecordsChanged int64         `json:"records_changed"`
	Corrections    int64         `json:"corrections"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration"`
	SpellerTime    time.Duration `json:"speller_time"`
}

// ErrMalformedRow reports an input row that cannot be parsed.
var ErrMalformedRow = errors.New("malformed row")

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}
