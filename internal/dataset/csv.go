// Package dataset reads historical donor exports into raw records.
package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("dataset has no header row")

// naTokens are cell values treated as absent. The set matches what common
// spreadsheet and dataframe exports write for missing cells.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// Dataset is a parsed export: the header and one record per data row.
type Dataset struct {
	Columns []string
	Records []model.RawRecord
	// Skipped counts malformed rows that were not loaded.
	Skipped int
}

// LoadCSV reads the CSV file at path.
func LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // dataset path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses CSV data with a header row. Every column named in the header
// is a key in every record; missing cells map to nil, including trailing
// cells of short rows. Rows with more fields than the header are skipped and
// counted.
func ReadCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = h
	}

	ds := &Dataset{Columns: columns}
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				ds.Skipped++
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(fields) > len(columns) {
			ds.Skipped++
			continue
		}

		rec := make(model.RawRecord, len(columns))
		for i, col := range columns {
			if i >= len(fields) {
				rec[col] = nil
				continue
			}
			rec[col] = cell(fields[i])
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func cell(s string) any {
	if _, ok := naTokens[s]; ok {
		return nil
	}
	return s
}
