package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/handruler/internal/monitoring"
)

// ErrExporterNotFound is returned when a requested exporter cannot be found.
var ErrExporterNotFound = errors.New("exporter not found")

// Manager discovers exporters in a directory.
type Manager struct {
	dir       string
	exporters map[string]*Exporter
	mu        sync.RWMutex
}

// NewManager creates a Manager for the given exporter directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		exporters: make(map[string]*Exporter),
	}
}

// Discover scans the directory for subdirectories holding a plugin.json
// manifest. A missing directory means no exporters. Unreadable or invalid
// manifests are skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exporters = make(map[string]*Exporter)

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(path, "plugin.json"))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			monitoring.Warnf("skipping exporter %s: invalid manifest: %v", entry.Name(), err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			monitoring.Warnf("skipping exporter %s: manifest needs name and executable", entry.Name())
			continue
		}

		m.exporters[manifest.Name] = &Exporter{
			Manifest:   manifest,
			Path:       path,
			Executable: filepath.Join(path, manifest.Executable),
		}
	}

	return nil
}

// Get returns an exporter by name.
func (m *Manager) Get(name string) (*Exporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.exporters[name]
	if !ok {
		return nil, ErrExporterNotFound
	}
	return e, nil
}

// List returns all discovered exporters sorted by name.
func (m *Manager) List() []*Exporter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Exporter, 0, len(m.exporters))
	for _, e := range m.exporters {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Manifest.Name < out[j].Manifest.Name
	})
	return out
}

// Dir returns the exporter directory.
func (m *Manager) Dir() string {
	return m.dir
}
