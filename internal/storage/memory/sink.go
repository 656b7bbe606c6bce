package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

// Sink collects stored records in arrival order.
type Sink struct {
	mu      sync.Mutex
	records []fara.Record
	err     error
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Name identifies the sink in logs and metrics.
func (*Sink) Name() string { return "memory" }

// Store appends record, or returns the error set with FailWith.
func (s *Sink) Store(_ context.Context, record fara.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

// FailWith makes every later Store call return err.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Records returns a snapshot of the stored records.
func (s *Sink) Records() []fara.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fara.Record(nil), s.records...)
}
