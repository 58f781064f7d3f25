//go:build sqlite

package resflow

import (
	"testing"
)

// useSQLite is true when sqlite build tag is set
var useSQLite = true

// setupTestStore creates a SQLite in-memory store
func setupTestStore(t *testing.T) (Store, TxManager, func()) {
	t.Helper()

	store, err := NewSQLiteInMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}

	cleanup := func() {
		_ = store.Close()
	}

	return store, NewSQLiteTxManager(store), cleanup
}
