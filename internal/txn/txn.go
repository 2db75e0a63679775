// Package txn runs metadata mutations inside a single database transaction.
package txn

import (
	"context"
	"database/sql"
	"fmt"
)

// Beginner is implemented by *sql.DB
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Manager manages database transactions
type Manager struct {
	db Beginner
}

// NewManager creates a new transaction manager
func NewManager(db Beginner) *Manager {
	return &Manager{db: db}
}

// WithTransaction executes fn within a transaction.
// Automatically commits on success or rolls back on error or panic.
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Run is a convenience wrapper for a one-off transaction on db.
func Run(ctx context.Context, db Beginner, fn func(tx *sql.Tx) error) error {
	return NewManager(db).WithTransaction(ctx, fn)
}
