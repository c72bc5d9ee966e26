package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/sqlite"
)

func open(t *testing.T) database.Connection {
	t.Helper()
	conn, err := database.Open(context.Background(), database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "cadence.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return conn
}

func count(t *testing.T, conn database.Connection) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM notes`).Scan(&n))
	return n
}

func TestOpen_RegisteredThroughImport(t *testing.T) {
	conn := open(t)

	assert.Equal(t, database.DriverSQLite, conn.Driver())
	assert.NoError(t, conn.Ping(context.Background()))
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := open(t)

	res, err := conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?), (?, ?)`, "a", "run", "b", "read")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := conn.Query(ctx, `SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		require.NoError(t, rows.Scan(&body))
		bodies = append(bodies, body)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"run", "read"}, bodies)

	var missing string
	err = conn.QueryRow(ctx, `SELECT body FROM notes WHERE id = ?`, "zzz").Scan(&missing)
	assert.True(t, database.IsNoRows(err))
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := open(t)
	uow := database.NewUnitOfWork(conn)

	insert := func(id string) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := database.ExecutorFromContext(ctx, conn).Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, 'x')`, id)
			return err
		}
	}

	require.NoError(t, application.WithUnitOfWork(ctx, uow, insert("kept")))
	assert.Equal(t, 1, count(t, conn))

	boom := errors.New("boom")
	err := application.WithUnitOfWork(ctx, uow, func(ctx context.Context) error {
		if err := insert("dropped")(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(t, conn))
}

func TestUnitOfWork_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	conn := open(t)
	uow := database.NewUnitOfWork(conn)

	err := application.WithUnitOfWork(ctx, uow, func(outer context.Context) error {
		inner, err := uow.Begin(outer)
		require.NoError(t, err)
		assert.Same(t, database.TxFromContext(outer), database.TxFromContext(inner))

		_, err = database.ExecutorFromContext(inner, conn).Exec(inner, `INSERT INTO notes (id, body) VALUES ('n', 'x')`)
		require.NoError(t, err)

		// the inner unit does not own the transaction
		require.NoError(t, uow.Commit(inner))
		return errors.New("abort outer")
	})
	require.Error(t, err)
	assert.Equal(t, 0, count(t, conn))

	assert.ErrorIs(t, uow.Commit(ctx), database.ErrNoTransaction)
}
