// Package seed reads the initial species list synced on startup.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const nameColumn = "name"

// ReadNames returns the lowercased, trimmed values of the name column of the
// CSV at path, skipping blanks. A missing file yields no names.
func ReadNames(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open seed csv: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Parse(file)
}

func Parse(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed csv header: %w", err)
	}
	column := -1
	for i, field := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(field, "\ufeff")), nameColumn) {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, fmt.Errorf("seed csv has no %q column", nameColumn)
	}

	names := make([]string, 0, 64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read seed csv: %w", err)
		}
		if column >= len(record) {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(record[column])); name != "" {
			names = append(names, name)
		}
	}
}
