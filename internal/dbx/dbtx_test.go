package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db DBTX) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestRunInTx_OpensTransactionOnDB(t *testing.T) {
	db := setupDB(t)

	err := RunInTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		_, isTx := tx.(*sql.Tx)
		require.True(t, isTx)
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('a')`)
		require.NoError(t, err)
		return errors.New("undo")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db))
}

func TestRunInTx_JoinsOuterTransaction(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, outer DBTX) error {
		return RunInTx(ctx, outer, func(ctx context.Context, inner DBTX) error {
			require.Same(t, outer, inner)
			_, err := inner.ExecContext(ctx, `INSERT INTO t(v) VALUES ('joined')`)
			return err
		})
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestExpectOne(t *testing.T) {
	none := errors.New("none")

	require.NoError(t, ExpectOne(fakeResult{n: 1}, none))
	require.ErrorIs(t, ExpectOne(fakeResult{n: 0}, none), none)
	require.ErrorContains(t, ExpectOne(fakeResult{n: 2}, none), "unexpected rows affected: 2")

	boom := errors.New("boom")
	require.ErrorIs(t, ExpectOne(fakeResult{err: boom}, none), boom)
}

func TestExpectOne_RealUpdate(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO t (id, v) VALUES (1, 'a')`)
	require.NoError(t, err)

	res, err := db.ExecContext(ctx, `UPDATE t SET v = 'b' WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, ExpectOne(res, sql.ErrNoRows))

	res, err = db.ExecContext(ctx, `UPDATE t SET v = 'b' WHERE id = 42`)
	require.NoError(t, err)
	require.ErrorIs(t, ExpectOne(res, sql.ErrNoRows), sql.ErrNoRows)
}
