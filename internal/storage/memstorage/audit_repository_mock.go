package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/makkenzo/email-gateway-api/internal/domain/audit"
)

// AuditRepositoryMock collects audit entries in memory for tests.
type AuditRepositoryMock struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func NewAuditRepositoryMock() *AuditRepositoryMock {
	return &AuditRepositoryMock{}
}

var _ audit.Repository = (*AuditRepositoryMock)(nil)

func (r *AuditRepositoryMock) Append(ctx context.Context, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryCopy := *entry
	r.entries = append(r.entries, &entryCopy)
	return nil
}

func (r *AuditRepositoryMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

// Entries returns a snapshot of everything appended so far.
func (r *AuditRepositoryMock) Entries() []*audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*audit.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
