package etl

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"
)

// ReadRecords loads every record from path, choosing the decoder by extension.
func ReadRecords(path string) ([]TextRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	switch DetectFileFormat(path) {
	case FormatParquet:
		return readParquet(file)
	case FormatJSON:
		return readJSON(file)
	default:
		return readCSV(file)
	}
}

// readCSV parses semicolon-delimited rows without a header.
func readCSV(r io.Reader) ([]TextRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = columnCount // id, title, text, cluster, time, publisher

	var records []TextRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, parseErr.Line, parseErr.Err)
			}
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		records = append(records, TextRecord{
			ID:        row[0],
			Title:     row[1],
			Text:      row[2],
			Cluster:   row[3],
			Time:      row[4],
			Publisher: row[5],
		})
	}

	return records, nil
}

// readParquet reads rows whose column names match TextRecord's parquet tags.
func readParquet(file *os.File) ([]TextRecord, error) {
	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []TextRecord
	for {
		var record TextRecord
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parquet row %d: %v", ErrMalformedRow, len(records)+1, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// readJSON reads one JSON object per line.
func readJSON(r io.Reader) ([]TextRecord, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var records []TextRecord
	for {
		var record TextRecord
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: json record %d: %v", ErrMalformedRow, len(records)+1, err)
		}
		records = append(records, record)
	}

	return records, nil
}
