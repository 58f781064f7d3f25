package resflow

import (
	"context"
	"slices"
	"sync"
)

type memoryTxKey struct{}

// snapshotter is an in-process store that can capture its state and put it
// back when a transaction fails.
type snapshotter interface {
	snapshot() (restore func())
}

// MemoryTxManager serializes transactions of in-process stores so lock
// decisions and their writes happen atomically. Nested calls join the
// enclosing transaction. Tracked stores are restored when the outermost
// transaction returns an error.
type MemoryTxManager struct {
	mu     sync.Mutex
	stores []snapshotter
}

func NewMemoryTxManager(stores ...*MemoryStore) *MemoryTxManager {
	m := &MemoryTxManager{}
	for _, store := range stores {
		m.track(store)
	}

	return m
}

func (m *MemoryTxManager) track(store snapshotter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.stores, store) {
		m.stores = append(m.stores, store)
	}
}

func (m *MemoryTxManager) ReadCommitted(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *MemoryTxManager) RepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *MemoryTxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(memoryTxKey{}).(*MemoryTxManager); ok && owner == m {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restores := make([]func(), 0, len(m.stores))
	for _, store := range m.stores {
		restores = append(restores, store.snapshot())
	}

	if err := fn(context.WithValue(ctx, memoryTxKey{}, m)); err != nil {
		for _, restore := range restores {
			restore()
		}

		return err
	}

	return nil
}
