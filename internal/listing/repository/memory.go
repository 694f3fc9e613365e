package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thriftkids/marketplace/internal/listing"
)

type memoryEntry struct {
	l       listing.Listing
	created time.Time
	seq     int
}

// MemoryRepo keeps listings in process memory. It backs STORE_BACKEND=memory
// for local development and the unit tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []memoryEntry
	now     func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: time.Now}
}

// NewMemoryRepoWithClock uses now to stamp CreatedAt.
func NewMemoryRepoWithClock(now func() time.Time) *MemoryRepo {
	return &MemoryRepo{now: now}
}

func (m *MemoryRepo) Insert(ctx context.Context, l *listing.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := m.now().UTC()
	l.ID = uuid.NewString()
	l.CreatedAt = listing.FormatTimestamp(created)
	m.entries = append(m.entries, memoryEntry{l: *l, created: created, seq: len(m.entries)})
	return nil
}

func (m *MemoryRepo) ListNewestFirst(ctx context.Context) ([]*listing.Listing, error) {
	m.mu.RLock()
	entries := make([]memoryEntry, len(m.entries))
	copy(entries, m.entries)
	m.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].created.After(entries[j].created)
	})
	out := make([]*listing.Listing, 0, len(entries))
	for i := range entries {
		l := entries[i].l
		out = append(out, &l)
	}
	return out, nil
}
