package resflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTxManager_RollsBackTrackedStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	manager := NewMemoryTxManager(store)

	kept := NewResource("Dam A", "", "org-1")
	require.NoError(t, store.CreateResource(ctx, kept))

	errAbort := errors.New("abort")
	dropped := NewResource("Dam B", "", "org-1")
	err := manager.ReadCommitted(ctx, func(ctx context.Context) error {
		require.NoError(t, store.CreateResource(ctx, dropped))

		locked, err := store.GetResourceForUpdate(ctx, kept.ID)
		require.NoError(t, err)
		locked.AcquireUserLock(&Actor{Identity: "alice"})
		require.NoError(t, store.UpdateResource(ctx, locked))

		return manager.RepeatableRead(ctx, func(context.Context) error { return errAbort })
	})
	require.ErrorIs(t, err, errAbort)

	_, err = store.GetResource(ctx, dropped.ID)
	require.ErrorIs(t, err, ErrEntityNotFound)

	stored, err := store.GetResource(ctx, kept.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.LockHolder())
}

func TestMemoryTxManager_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	manager := NewMemoryTxManager()
	manager.track(store)
	manager.track(store)
	assert.Len(t, manager.stores, 1)

	resource := NewResource("Dam A", "", "org-1")
	require.NoError(t, manager.ReadCommitted(ctx, func(ctx context.Context) error {
		return store.CreateResource(ctx, resource)
	}))

	_, err := store.GetResource(ctx, resource.ID)
	require.NoError(t, err)
}
