package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExec struct {
	statements []string
	err        error
}

func (r *recordingExec) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	return pgconn.CommandTag{}, r.err
}

func (r *recordingExec) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (r *recordingExec) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestApplyRunsEveryMigration(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.Equal(t, "0001_init.sql", names[0])

	exec := &recordingExec{}
	require.NoError(t, Apply(context.Background(), exec))
	require.Len(t, exec.statements, len(names))
	for _, table := range []string{"stock_records", "purchase_batches", "inventory_movements", "import_history", "idempotency_keys"} {
		require.True(t, strings.Contains(exec.statements[0], "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}

func TestApplyReportsFailingFile(t *testing.T) {
	exec := &recordingExec{err: errors.New("syntax error")}
	err := Apply(context.Background(), exec)
	require.EqualError(t, err, "migrations: apply 0001_init.sql: syntax error")
}
