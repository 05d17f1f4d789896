package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/raysim/pkg/domain"
)

// Ledger implements ports.RunLedger in memory.
// Safe for concurrent use.
type Ledger struct {
	data map[string]domain.RunRecord
	mu   sync.RWMutex
}

// NewLedger creates a new in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		data: make(map[string]domain.RunRecord),
	}
}

// Put stores a copy of the record.
func (l *Ledger) Put(ctx context.Context, record domain.RunRecord) error {
	record.Exports = slices.Clone(record.Exports)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[record.ID] = record
	return nil
}

// Get retrieves a copy of the record so callers can't mutate the ledger through it.
func (l *Ledger) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.data[id]
	if !ok {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	record.Exports = slices.Clone(record.Exports)
	return record, nil
}

// List returns every record, newest first.
func (l *Ledger) List(ctx context.Context) ([]domain.RunRecord, error) {
	l.mu.RLock()
	records := make([]domain.RunRecord, 0, len(l.data))
	for _, r := range l.data {
		r.Exports = slices.Clone(r.Exports)
		records = append(records, r)
	}
	l.mu.RUnlock()

	slices.SortFunc(records, func(a, b domain.RunRecord) int {
		return b.Started.Compare(a.Started)
	})
	return records, nil
}

// Delete removes the record.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, id)
	return nil
}
