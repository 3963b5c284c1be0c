package store

import (
	"fmt"

	"github.com/ayusman/handruler/internal/monitoring"
)

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open opens a repository for the named driver.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case DriverJSON, "":
		return OpenJSON(path)
	case DriverSQLite:
		return New(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Fanout writes each record to a primary repository and then hands it to
// any number of hooks. Only the primary decides whether a save succeeded;
// hook failures are logged.
type Fanout struct {
	Primary Repository
	Hooks   []Sink
}

// Append stores rec in the primary and notifies the hooks.
func (f *Fanout) Append(rec *Record) error {
	if err := f.Primary.Append(rec); err != nil {
		return err
	}
	for _, h := range f.Hooks {
		if err := h.Append(rec); err != nil {
			monitoring.Warnf("record hook failed for hand %d: %v", rec.HandIndex, err)
		}
	}
	return nil
}

// List lists the primary repository.
func (f *Fanout) List() ([]Record, error) {
	return f.Primary.List()
}

// Close closes the primary repository.
func (f *Fanout) Close() error {
	return f.Primary.Close()
}
