package usecase

import (
	"context"

	"github.com/iho/shopledger/internal/domain"
)

// txRunner runs a unit of work in one transaction bounded by
// DefaultTransactionTimeout. When a retrier is set the whole unit is re-run
// on retryable failures, so fn must not keep state across attempts.
type txRunner struct {
	manager TransactionManager
	retrier Retrier
}

func (r txRunner) run(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	attempt := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := r.manager.Begin(txCtx)
		if err != nil {
			return domain.NewPersistenceError("begin transaction", err)
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.Commit(txCtx); err != nil {
			return domain.NewPersistenceError("commit transaction", err)
		}

		return nil
	}

	if r.retrier == nil {
		return attempt()
	}

	return r.retrier.Retry(ctx, attempt)
}

// snapshot runs fn in a read-only transaction that sees one consistent view
// of the store. Nothing is retried because nothing is written.
func (r txRunner) snapshot(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := r.manager.BeginSnapshot(txCtx)
	if err != nil {
		return domain.NewPersistenceError("begin snapshot", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return domain.NewPersistenceError("commit snapshot", err)
	}

	return nil
}
