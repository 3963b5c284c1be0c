package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// newTestStore creates a new Store in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func sampleRecords(n int) []Record {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec := NewRecord(at.Add(time.Duration(i)*time.Minute), i+1, map[string]Entry{
			"forearm": Value(29.96 + float64(i)),
			"palm":    Group(map[string]float64{"width": 8.56, "length": 9.13, "span": 13.12}),
			"index": Group(map[string]float64{
				"total":     7.704,
				"segment_1": 3.42,
				"segment_2": 2.28,
				"segment_3": 2.0,
			}),
		})
		records = append(records, *rec)
	}
	return records
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, obj := range []struct{ kind, name string }{
		{"table", "records"},
		{"index", "idx_records_hand_index"},
	} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?",
			obj.kind, obj.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q should exist after migrations: %v", obj.kind, obj.name, err)
		}
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestRecordRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := sampleRecords(5)

	for i := range want {
		if err := s.Append(&want[i]); err != nil {
			t.Fatalf("append record %d: %v", i, err)
		}
		if _, err := uuid.Parse(want[i].ID); err != nil {
			t.Errorf("record %d should get a UUID, got %q", i, want[i].ID)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordRepository_GetAndDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Records()

	rec := sampleRecords(1)[0]
	rec.ID = "fixed-id"
	if err := repo.Append(&rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.GetByID("fixed-id")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if diff := cmp.Diff(&rec, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Delete("fixed-id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("fixed-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecordRepository_MaxHandIndex(t *testing.T) {
	s := newTestStore(t)
	repo := s.Records()

	max, err := repo.MaxHandIndex()
	if err != nil {
		t.Fatalf("MaxHandIndex() error = %v", err)
	}
	if max != 0 {
		t.Errorf("empty store max = %d, want 0", max)
	}

	for _, idx := range []int{3, 9, 4} {
		rec := NewRecord(time.Now(), idx, nil)
		if err := repo.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	max, err = repo.MaxHandIndex()
	if err != nil {
		t.Fatalf("MaxHandIndex() error = %v", err)
	}
	if max != 9 {
		t.Errorf("max = %d, want 9", max)
	}
}

func TestJSONFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hand_measurements.json")

	f, err := OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON() error = %v", err)
	}

	empty, err := f.List()
	if err != nil {
		t.Fatalf("List() on missing file error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}

	want := sampleRecords(4)
	for i := range want {
		if err := f.Append(&want[i]); err != nil {
			t.Fatalf("append record %d: %v", i, err)
		}
	}

	reopened, err := OpenJSON(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if MaxHandIndex(got) != 4 {
		t.Errorf("MaxHandIndex = %d, want 4", MaxHandIndex(got))
	}

	leftovers, _ := filepath.Glob(path + ".*.tmp")
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestJSONFile_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	f, err := OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON() error = %v", err)
	}

	rec := NewRecord(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), 1, map[string]Entry{
		"forearm": Value(29.96),
		"thumb":   Group(map[string]float64{"total": 6.04}),
	})
	if err := f.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file should be a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 record, got %d", len(raw))
	}
	if raw[0]["timestamp"] != "2024-01-02 03:04:05" {
		t.Errorf("timestamp = %v", raw[0]["timestamp"])
	}
	if raw[0]["hand_index"] != float64(1) {
		t.Errorf("hand_index = %v", raw[0]["hand_index"])
	}
	if _, ok := raw[0]["id"]; ok {
		t.Error("empty id should be omitted")
	}
	m := raw[0]["measurements"].(map[string]interface{})
	if m["forearm"] != 30.0 {
		t.Errorf("forearm = %v, want 30", m["forearm"])
	}
	if thumb := m["thumb"].(map[string]interface{}); thumb["total"] != 6.0 {
		t.Errorf("thumb total = %v, want 6", thumb["total"])
	}
}

func TestJSONFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenJSON(path); err == nil {
		t.Error("expected error opening corrupt file")
	}
}

func TestEntry_UnmarshalStrings(t *testing.T) {
	// Histories written with decimal strings still load.
	data := `{"forearm": "29.9", "index": {"total": "7.7", "segment_1": 3.4}}`

	var got map[string]Entry
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]Entry{
		"forearm": {Value: 29.9},
		"index":   {Group: map[string]float64{"total": 7.7, "segment_1": 3.4}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	var bad Entry
	if err := json.Unmarshal([]byte(`"abc"`), &bad); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if err := json.Unmarshal([]byte(`true`), &bad); err == nil {
		t.Error("expected error for boolean")
	}
}

func TestEntry_Names(t *testing.T) {
	e := Group(map[string]float64{"total": 1, "segment_2": 2, "segment_1": 3})
	if got := strings.Join(e.Names(), ","); got != "segment_1,segment_2,total" {
		t.Errorf("Names() = %s", got)
	}
	if Value(1).IsGroup() {
		t.Error("scalar entry should not be a group")
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Append(*Record) error {
	f.calls++
	return fmt.Errorf("hook down")
}

func TestFanout(t *testing.T) {
	primary, err := OpenJSON(filepath.Join(t.TempDir(), "records.json"))
	if err != nil {
		t.Fatal(err)
	}
	hook := &failingSink{}
	f := &Fanout{Primary: primary, Hooks: []Sink{hook}}

	if err := f.Append(NewRecord(time.Now(), 1, nil)); err != nil {
		t.Fatalf("hook failure should not fail the save: %v", err)
	}
	if hook.calls != 1 {
		t.Errorf("hook calls = %d, want 1", hook.calls)
	}

	records, err := f.List()
	if err != nil || len(records) != 1 {
		t.Fatalf("List() = %d records, %v", len(records), err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{DriverJSON, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			repo, err := Open(driver, filepath.Join(dir, "records."+driver))
			if err != nil {
				t.Fatalf("Open(%q) error = %v", driver, err)
			}
			defer repo.Close()

			if err := repo.Append(NewRecord(time.Now(), 1, map[string]Entry{"forearm": Value(25)})); err != nil {
				t.Fatalf("append: %v", err)
			}
			records, err := repo.List()
			if err != nil || len(records) != 1 {
				t.Fatalf("List() = %d records, %v", len(records), err)
			}
		})
	}

	if _, err := Open("postgres", "x"); err == nil {
		t.Error("expected error for unknown driver")
	}
}
