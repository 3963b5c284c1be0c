package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TimestampLayout is the format of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one saved hand measurement.
type Record struct {
	ID           string           `json:"id,omitempty"`
	Timestamp    string           `json:"timestamp"`
	HandIndex    int              `json:"hand_index"`
	Measurements map[string]Entry `json:"measurements"`
}

// NewRecord creates a record stamped with the given time.
func NewRecord(at time.Time, handIndex int, measurements map[string]Entry) *Record {
	return &Record{
		Timestamp:    at.Format(TimestampLayout),
		HandIndex:    handIndex,
		Measurements: measurements,
	}
}

// Time parses the record timestamp in local time.
func (r *Record) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, r.Timestamp, time.Local)
}

// Sink accepts saved records.
type Sink interface {
	Append(rec *Record) error
}

// Repository is a Sink that can also list what it holds, oldest first.
type Repository interface {
	Sink
	List() ([]Record, error)
	Close() error
}

// MaxHandIndex returns the largest hand index in records, or 0.
func MaxHandIndex(records []Record) int {
	max := 0
	for _, r := range records {
		if r.HandIndex > max {
			max = r.HandIndex
		}
	}
	return max
}

// Round1 rounds v to one fractional digit.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Entry is a measurement value: either a single number (forearm length) or a
// group of named sub-measurements (a finger's total and segments).
type Entry struct {
	Value float64
	Group map[string]float64
}

// Value returns a scalar entry rounded to one decimal.
func Value(v float64) Entry {
	return Entry{Value: Round1(v)}
}

// Group returns a grouped entry with every value rounded to one decimal.
func Group(values map[string]float64) Entry {
	g := make(map[string]float64, len(values))
	for k, v := range values {
		g[k] = Round1(v)
	}
	return Entry{Group: g}
}

// IsGroup reports whether the entry holds sub-measurements.
func (e Entry) IsGroup() bool {
	return e.Group != nil
}

// Names returns the sub-measurement names of a group, sorted.
func (e Entry) Names() []string {
	names := make([]string, 0, len(e.Group))
	for k := range e.Group {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes a scalar as a number and a group as an object.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.IsGroup() {
		return json.Marshal(e.Group)
	}
	return json.Marshal(e.Value)
}

// UnmarshalJSON accepts a number, a numeric string, or an object of either.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		group := make(map[string]float64, len(raw))
		for k, v := range raw {
			f, err := parseNumber(v)
			if err != nil {
				return fmt.Errorf("measurement %q: %w", k, err)
			}
			group[k] = f
		}
		*e = Entry{Group: group}
		return nil
	}

	f, err := parseNumber(data)
	if err != nil {
		return err
	}
	*e = Entry{Value: f}
	return nil
}

// parseNumber reads a JSON number or a JSON string holding a decimal.
func parseNumber(data json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("invalid measurement value %s", data)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid measurement value %q: %w", s, err)
	}
	return f, nil
}
