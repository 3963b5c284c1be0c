// Package export runs exporter plugins for every saved hand record. An
// exporter is an executable in its own directory next to a plugin.json
// manifest; it receives the record as JSON on stdin.
package export

import (
	"encoding/json"

	"github.com/ayusman/handruler/internal/store"
)

// EventRecordSaved is sent when a hand record has been saved.
const EventRecordSaved = "record.saved"

// Manifest describes an exporter's metadata.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to an exporter's stdin.
type Request struct {
	Event  string          `json:"event"`
	Record *store.Record   `json:"record"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from an exporter's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Exporter is a discovered exporter with its manifest and location.
type Exporter struct {
	Manifest   Manifest
	Path       string
	Executable string
}
