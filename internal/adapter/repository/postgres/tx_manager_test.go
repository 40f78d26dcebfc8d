package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/shopledger/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}

func TestTxManagerBeginRoutesRepositoryWrites(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectExec("UPDATE parties").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "shop-1", "Shop", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	manager := newTxManagerWithPool(pool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if tx.(*Tx).ReadOnly() {
		t.Fatalf("Begin must open a read-write transaction")
	}

	repo := newPartyRepository(pool)
	if err := repo.UpdateBalance(context.Background(), tx, domain.PartyKindShop, "shop-1",
		testShop().Balance, 7, testShop().UpdatedAt); err != nil {
		t.Fatalf("update through tx failed: %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxManagerBeginError(t *testing.T) {
	pool := newMockPool(t)
	beginErr := errors.New("too many connections")
	pool.ExpectBegin().WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
}

func TestTxManagerBeginSnapshotIsReadOnlyRepeatableRead(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).BeginSnapshot(context.Background())
	if err != nil {
		t.Fatalf("begin snapshot failed: %v", err)
	}
	if !tx.(*Tx).ReadOnly() {
		t.Fatalf("expected a read-only transaction")
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxRollbackDiscardsRepositoryWrites(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectQuery("INSERT INTO party_sequences").
		WithArgs("party_code:Customer").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(4)))
	pool.ExpectRollback()

	manager := newTxManagerWithPool(pool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	next, err := newSequenceRepository(pool).Next(context.Background(), tx, "party_code:Customer")
	if err != nil || next != 4 {
		t.Fatalf("unexpected sequence value %d err=%v", next, err)
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestConnForPicksTransaction(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()

	if got := connFor(pool, nil); got != pool {
		t.Fatalf("nil tx should fall back to the pool")
	}

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if got := connFor(pool, tx); got != tx.(*Tx).PgxTx() {
		t.Fatalf("expected the pgx transaction behind tx")
	}
}
