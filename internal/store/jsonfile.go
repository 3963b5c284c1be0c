package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile keeps every record in one JSON array file. Each append reads the
// whole file, adds the record and rewrites it.
type JSONFile struct {
	mu   sync.Mutex
	path string
}

// OpenJSON opens the record file at path, creating its directory if needed.
// A missing file is an empty history; an unreadable one is an error.
func OpenJSON(path string) (*JSONFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create record directory: %w", err)
		}
	}

	f := &JSONFile{path: path}
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file path.
func (f *JSONFile) Path() string {
	return f.path
}

// Append adds rec to the end of the file.
func (f *JSONFile) Append(rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	records = append(records, *rec)
	return f.save(records)
}

// List returns every record in file order.
func (f *JSONFile) List() ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Close is a no-op; the file is only open while reading or writing.
func (f *JSONFile) Close() error {
	return nil
}

func (f *JSONFile) load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", f.path, err)
	}
	return records, nil
}

// save writes to a temporary file and renames it over the original so a
// crash never leaves a truncated history.
func (f *JSONFile) save(records []Record) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
