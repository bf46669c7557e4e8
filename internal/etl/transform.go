package etl

import (
	"fmt"
	"strings"

	"github.com/raaihank/speller/internal/patch"
	"github.com/raaihank/speller/internal/speller"
)

// FilterByCluster keeps records that belong to a cluster.
func FilterByCluster(records []TextRecord) []TextRecord {
	out := make([]TextRecord, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Cluster) != "" {
			out = append(out, r)
		}
	}
	return out
}

// Limit returns the first n records; n <= 0 keeps all of them.
func Limit(records []TextRecord, n int) []TextRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// Texts extracts the text column.
func Texts(records []TextRecord) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	return texts
}

// CorrectRecords returns copies of records with suggestions applied.
// suggestions[i] belongs to records[i]; the input slice is left untouched.
func CorrectRecords(records []TextRecord, suggestions [][]speller.Suggestion, applier *patch.Applier) (*Outcome, error) {
	if len(suggestions) != len(records) {
		return nil, fmt.Errorf("got %d suggestion lists for %d records", len(suggestions), len(records))
	}

	outcome := &Outcome{Records: make([]TextRecord, len(records))}
	for i, record := range records {
		res, err := applier.Apply(record.Text, suggestions[i])
		if err != nil {
			return nil, fmt.Errorf("record %d (id %q): %w", i, record.ID, err)
		}

		record.Text = res.Text
		outcome.Records[i] = record
		if res.Changed() {
			outcome.Changed++
		}
		for _, e := range res.Entries {
			outcome.Corrections = append(outcome.Corrections, Correction{Record: i, RecordID: record.ID, Entry: e})
		}
	}

	return outcome, nil
}
