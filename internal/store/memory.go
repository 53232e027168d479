package store

import (
	"context"
	"sync"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Memory keeps the latest snapshot in process. State does not survive a
// restart; used for dry runs and tests.
type Memory struct {
	mu   sync.Mutex
	snap schema.Snapshot
	set  bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, snap schema.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.set = true
	return nil
}

func (m *Memory) Load(_ context.Context) (schema.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return schema.Snapshot{}, ErrNoSnapshot
	}
	return m.snap, nil
}

func (m *Memory) Close() error { return nil }
