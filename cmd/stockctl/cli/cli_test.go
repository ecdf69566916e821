package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/app"
	"github.com/odyssey-erp/stockroom/internal/importer"
	"github.com/odyssey-erp/stockroom/jobs"
)

type stubImporter struct {
	kind    importer.Kind
	name    string
	content string
}

func (s *stubImporter) Import(_ context.Context, kind importer.Kind, fileName string, r io.Reader) (importer.Summary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return importer.Summary{}, err
	}
	s.kind, s.name, s.content = kind, fileName, string(data)
	return importer.Summary{ImportID: "imp-9", Type: kind, FileName: fileName, Imported: 2, Skipped: []int{4}}, nil
}

type stubJobs struct {
	triggered []string
	closed    bool
}

func (s *stubJobs) Trigger(_ context.Context, name string) (string, error) {
	if _, err := jobs.NewTask(name, time.Now()); err != nil {
		return "", err
	}
	s.triggered = append(s.triggered, name)
	return "task-42", nil
}

func (s *stubJobs) InspectQueue(context.Context) (QueueStats, error) {
	return QueueStats{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}, nil
}

func (s *stubJobs) Close() error {
	s.closed = true
	return nil
}

func run(t *testing.T, env Env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(env)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProjectCommand(t *testing.T) {
	out, err := run(t, Env{}, "project", "--stock", "10", "--sales30d", "60")
	require.NoError(t, err)
	require.Equal(t, "remaining_days=5 status=warning\n", out)

	out, err = run(t, Env{}, "project", "--stock", "0", "--sales30d", "0", "--json")
	require.NoError(t, err)
	require.JSONEq(t, `{"stock_quantity":0,"sales_30d":0,"remaining_days":9999,"status":"sufficient"}`, out)

	_, err = run(t, Env{}, "project", "--stock=-1")
	require.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("商品名稱,商品規格,數量,單價\n杯,紅,1,10\n"), 0o600))

	stub := &stubImporter{}
	env := Env{OpenImporter: func(context.Context) (Importer, io.Closer, error) { return stub, nil, nil }}
	out, err := run(t, env, "import", "--type", "order", path)
	require.NoError(t, err)
	require.Equal(t, importer.KindOrder, stub.kind)
	require.Equal(t, "orders.csv", stub.name)
	require.Contains(t, stub.content, "單價")
	require.Contains(t, out, "imported 2 order rows from orders.csv (import imp-9)")
	require.Contains(t, out, "skipped lines: [4]")

	_, err = run(t, env, "import", "--type", "refund", path)
	require.ErrorIs(t, err, importer.ErrInvalidKind)

	_, err = run(t, env, "import", filepath.Join(dir, "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestJobsCommands(t *testing.T) {
	backend := &stubJobs{}
	env := Env{OpenJobs: func(context.Context) (JobsBackend, io.Closer, error) { return backend, backend, nil }}

	out, err := run(t, env, "jobs", "trigger", jobs.TaskSalesWarmup)
	require.NoError(t, err)
	require.Equal(t, "enqueued analytics:sales_warmup as task-42\n", out)
	require.True(t, backend.closed)

	_, err = run(t, env, "jobs", "trigger", "import:csv")
	require.ErrorIs(t, err, jobs.ErrUnknownTask)

	out, err = run(t, env, "jobs", "stats")
	require.NoError(t, err)
	require.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1\n", out)

	_, err = run(t, Env{}, "jobs", "stats")
	require.Error(t, err)
}

func TestLoggerFollowsLogFormat(t *testing.T) {
	var buf bytes.Buffer
	prev := logOutput
	logOutput = &buf
	t.Cleanup(func() { logOutput = prev })

	newLogger(&app.Config{LogFormat: "json", AppEnv: "development"}).Warn("cache unavailable")
	require.True(t, strings.HasPrefix(buf.String(), "{"))
	require.Contains(t, buf.String(), `"msg":"cache unavailable"`)

	buf.Reset()
	newLogger(&app.Config{LogFormat: "pretty"}).Warn("cache unavailable")
	require.Contains(t, buf.String(), `msg="cache unavailable"`)
}
