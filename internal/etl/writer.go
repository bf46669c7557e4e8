package etl

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/segmentio/parquet-go"
)

// WriteRecords writes records to path in the format implied by its extension.
// The file appears only once fully written.
func WriteRecords(path string, records []TextRecord) error {
	return writeAtomic(path, func(f *os.File) error {
		switch DetectFileFormat(path) {
		case FormatParquet:
			return writeParquet(f, records)
		case FormatJSON:
			return writeJSON(f, records)
		default:
			return writeCSV(f, records)
		}
	})
}

// WriteLog writes the rendered correction log to path.
func WriteLog(path string, log io.WriterTo) error {
	return writeAtomic(path, func(f *os.File) error {
		_, err := log.WriteTo(f)
		return err
	})
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, records []TextRecord) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	for _, r := range records {
		if err := writer.Write([]string{r.ID, r.Title, r.Text, r.Cluster, r.Time, r.Publisher}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeParquet(w io.Writer, records []TextRecord) error {
	writer := parquet.NewWriter(w, parquet.SchemaOf(new(TextRecord)))
	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			return err
		}
	}
	return writer.Close()
}

func writeJSON(w io.Writer, records []TextRecord) error {
	buf := bufio.NewWriter(w)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return buf.Flush()
}
