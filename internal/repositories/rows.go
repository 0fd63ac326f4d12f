package repositories

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ryantate/typingpool-sub000/internal/models"
)

// RowStore persists a project's rows as a CSV file with a header line.
//
// Every write replaces the whole file. The new content is written to a
// temporary file in the same directory and renamed over the old one, so a
// crash mid-write leaves either the old or the new record, never a mix.
type RowStore struct {
	path string
}

// NewRowStore creates a RowStore backed by the file at path.
func NewRowStore(path string) *RowStore {
	return &RowStore{path: path}
}

// Path returns the backing file.
func (s *RowStore) Path() string {
	return s.path
}

// Read returns all rows in file order. A missing file reads as no rows.
func (s *RowStore) Read() ([]*models.Row, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*models.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rows: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return []*models.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rows header: %w", err)
	}

	rows := []*models.Row{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		row := &models.Row{}
		for i, col := range header {
			if err := row.Set(col, record[i]); err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Write replaces the stored rows. A nil header is inferred from the union of the rows' field names.
func (s *RowStore) Write(rows []*models.Row, header []string) error {
	if header == nil {
		header = InferHeader(rows)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create rows directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp rows file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rows header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row.Get(col)
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row %s: %w", row.AudioURL, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("CSV writer error: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close rows: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace rows: %w", err)
	}

	return nil
}

// Mutate reads every row, applies fn to each and writes the full set back.
//
// If fn fails the store is left untouched.
func (s *RowStore) Mutate(fn func(row *models.Row) error) error {
	rows, err := s.Read()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return s.Write(rows, nil)
}

// InferHeader returns the known columns in canonical order followed by every extra column, sorted.
func InferHeader(rows []*models.Row) []string {
	header := append([]string{}, models.Columns...)
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		seen[col] = true
	}

	var extras []string
	for _, row := range rows {
		for _, col := range row.FieldNames() {
			if !seen[col] {
				seen[col] = true
				extras = append(extras, col)
			}
		}
	}
	sort.Strings(extras)

	return append(header, extras...)
}
