package resflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type sqliteTxKey struct{}

type sqliteTx struct {
	store *SQLiteStore
	tx    *sql.Tx
}

var _ TxManager = (*SQLiteTxManager)(nil)

// SQLiteTxManager runs each transaction on a *sql.Tx carried in the context,
// so every SQLiteStore call made with that context joins it and an error
// rolls all of them back. Transactions are serialized.
type SQLiteTxManager struct {
	store *SQLiteStore
	mu    sync.Mutex
}

func NewSQLiteTxManager(store *SQLiteStore) *SQLiteTxManager {
	return &SQLiteTxManager{store: store}
}

func (m *SQLiteTxManager) ReadCommitted(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *SQLiteTxManager) RepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *SQLiteTxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := m.store.txFromContext(ctx); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, sqliteTxKey{}, &sqliteTx{store: m.store, tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).Msg("rollback sqlite tx")
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (s *SQLiteStore) txFromContext(ctx context.Context) (*sql.Tx, bool) {
	current, ok := ctx.Value(sqliteTxKey{}).(*sqliteTx)
	if !ok || current.store != s {
		return nil, false
	}

	return current.tx, true
}

func (s *SQLiteStore) executor(ctx context.Context) sqlExecutor {
	if tx, ok := s.txFromContext(ctx); ok {
		return tx
	}

	return s.db
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx sqlExecutor) error) error {
	if tx, ok := s.txFromContext(ctx); ok {
		return fn(tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
