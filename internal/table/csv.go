package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	affinityInteger = "INTEGER"
	affinityReal    = "REAL"
	affinityText    = "TEXT"
)

type parsedCSV struct {
	header  []string
	types   []string
	records [][]string
}

// parseCSV reads a CSV with a header row and infers a column affinity per column
func parseCSV(r io.Reader) (*parsedCSV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	header = normalizeHeader(header)
	for i, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("CSV row %d has %d fields, header has %d", i+2, len(rec), len(header))
		}
	}

	types := make([]string, len(header))
	for col := range header {
		types[col] = inferAffinity(records, col)
	}

	return &parsedCSV{header: header, types: types, records: records}, nil
}

// normalizeHeader names blank columns and de-duplicates repeated names
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[strings.ToLower(name)]; ok {
			seen[strings.ToLower(name)] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[strings.ToLower(name)] = 0
		}
		out[i] = name
	}
	return out
}

func inferAffinity(records [][]string, col int) string {
	affinity := ""
	for _, rec := range records {
		if col >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			if affinity == "" {
				affinity = affinityInteger
			}
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			affinity = affinityReal
			continue
		}
		return affinityText
	}
	if affinity == "" {
		return affinityText
	}
	return affinity
}

// values converts one record into driver arguments following the inferred affinities
func (p *parsedCSV) values(rec []string) []any {
	args := make([]any, len(p.header))
	for i := range p.header {
		if i >= len(rec) {
			continue
		}
		raw := rec[i]
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch p.types[i] {
		case affinityInteger:
			n, _ := strconv.ParseInt(v, 10, 64)
			args[i] = n
		case affinityReal:
			f, _ := strconv.ParseFloat(v, 64)
			args[i] = f
		default:
			args[i] = raw
		}
	}
	return args
}
