package export

import (
	"context"
	"sync"

	"github.com/ayusman/handruler/internal/monitoring"
	"github.com/ayusman/handruler/internal/store"
)

// Sink hands every appended record to all discovered exporters. Exporters
// run in the background so a slow one never stalls the frame loop; Close
// waits for runs in flight.
type Sink struct {
	manager  *Manager
	executor *Executor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSink creates a Sink over the manager's exporters.
func NewSink(manager *Manager, executor *Executor) *Sink {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sink{
		manager:  manager,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Append starts one export per exporter. It never fails; export errors are
// logged.
func (s *Sink) Append(rec *store.Record) error {
	copied := *rec
	for _, exp := range s.manager.List() {
		s.wg.Add(1)
		go func(exp *Exporter) {
			defer s.wg.Done()
			req := &Request{Event: EventRecordSaved, Record: &copied, Config: exp.Manifest.Config}
			if _, err := s.executor.Execute(s.ctx, exp, req); err != nil {
				monitoring.Warnf("export of hand %d: %v", copied.HandIndex, err)
				return
			}
			monitoring.Logf("exported hand %d via %s", copied.HandIndex, exp.Manifest.Name)
		}(exp)
	}
	return nil
}

// Wait blocks until all exports started so far have finished.
func (s *Sink) Wait() {
	s.wg.Wait()
}

// Close cancels running exports and waits for them to exit.
func (s *Sink) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
