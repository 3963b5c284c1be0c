// Package main provides an exporter plugin that appends saved hand
// measurements to a CSV file.
//
// Build it next to its manifest:
//
//	go build -o plugins/csv-export/csv-export ./plugins/csv-export
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ayusman/handruler/internal/store"
)

const eventRecordSaved = "record.saved"

// Request represents the input from the exporter executor.
type Request struct {
	Event  string        `json:"event"`
	Record *store.Record `json:"record"`
	Config Config        `json:"config"`
}

// Config is the manifest configuration.
type Config struct {
	Path string `json:"path"`
}

// Response represents the output to the exporter executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var header = []string{"hand_index", "timestamp", "part", "metric", "value"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != eventRecordSaved {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}
	if req.Record == nil {
		writeErrorResponse("record is required")
		return
	}

	path := req.Config.Path
	if path == "" {
		path = "hand_measurements.csv"
	}
	if err := appendRows(path, Rows(req.Record)); err != nil {
		writeErrorResponse(fmt.Sprintf("write %s: %v", path, err))
		return
	}

	writeSuccessResponse()
}

// Rows flattens a record into one row per measurement, sorted by part and
// metric. Scalar entries use "length" as their metric.
func Rows(rec *store.Record) [][]string {
	parts := make([]string, 0, len(rec.Measurements))
	for part := range rec.Measurements {
		parts = append(parts, part)
	}
	sort.Strings(parts)

	index := strconv.Itoa(rec.HandIndex)
	var rows [][]string
	for _, part := range parts {
		e := rec.Measurements[part]
		if !e.IsGroup() {
			rows = append(rows, []string{index, rec.Timestamp, part, "length", formatValue(e.Value)})
			continue
		}
		for _, metric := range e.Names() {
			rows = append(rows, []string{index, rec.Timestamp, part, metric, formatValue(e.Group[metric])})
		}
	}
	return rows
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// appendRows appends rows to the CSV at path, writing the header first when
// the file is new or empty.
func appendRows(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
