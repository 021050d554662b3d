package operations

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/catalog"
	"github.com/kebairia/backhaul/internal/command"
	"github.com/kebairia/backhaul/internal/config"
	"github.com/kebairia/backhaul/internal/target"
)

// fakeExecutor serves a canned stdout per started command and captures the
// last command and everything streamed into stdin. Safe for the concurrent
// starts DumpMany issues.
type fakeExecutor struct {
	stdout   []byte
	result   backend.Result
	startErr error

	mu      sync.Mutex
	lastCmd command.Command
	stdin   bytes.Buffer
}

func (f *fakeExecutor) Kind() backend.Kind { return backend.KindLocalContainer }
func (f *fakeExecutor) Describe() string   { return "fake target" }

func (f *fakeExecutor) Start(ctx context.Context, cmd command.Command) (backend.Session, error) {
	f.mu.Lock()
	f.lastCmd = cmd
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeSession{ex: f, out: bytes.NewReader(f.stdout)}, nil
}

type fakeSession struct {
	ex  *fakeExecutor
	out io.Reader
}

func (s *fakeSession) Stdin() io.WriteCloser         { return nopWriteCloser{&s.ex.stdin} }
func (s *fakeSession) Stdout() io.Reader             { return s.out }
func (s *fakeSession) Wait() (backend.Result, error) { return s.ex.result, nil }
func (s *fakeSession) Kill() error                   { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func testTarget() *target.Target {
	return &target.Target{
		Name:      "pg-main",
		Backend:   backend.KindLocalContainer,
		Engine:    command.EnginePostgres,
		Container: &target.ContainerLocator{Container: "pg-main"},
		DB:        target.DBConn{User: "admin"},
	}
}

func testOperator(t *testing.T, ex backend.Executor) *Operator {
	t.Helper()
	cfg := config.Defaults()
	cfg.Backup.Directory = t.TempDir()
	cfg.Backup.DefaultDatabase = "main"
	cfg.Probe.Interval = 5 * time.Millisecond

	op := NewOperator(cfg, target.NewRegistry(""))
	op.executorFor = func(*target.Target, target.Secret) (backend.Executor, error) {
		return ex, nil
	}
	return op
}

func TestOperator_Dump(t *testing.T) {
	ex := &fakeExecutor{stdout: []byte("archive bytes")}
	op := testOperator(t, ex)

	art, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	assert.Equal(t, "shop", art.Database)
	assert.Equal(t, int64(len("archive bytes")), art.Size)
	assert.True(t, art.HasMetadata)
	assert.Equal(t, "local-container", art.OriginBackend)
	assert.Equal(t, "pg-main", art.OriginTarget)

	// Payload and sidecar both exist.
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))

	rec, err := op.Catalog().Store().Read(art.Name)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "shop", rec.Database)

	assert.Equal(t, "pg_dump", ex.lastCmd.Argv[0])
}

func TestOperator_Dump_DefaultDatabase(t *testing.T) {
	ex := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, ex)

	art, err := op.Dump(context.Background(), testTarget(), "")
	require.NoError(t, err)
	assert.Equal(t, "main", art.Database)
}

func TestOperator_Dump_InvalidDatabase(t *testing.T) {
	op := testOperator(t, &fakeExecutor{})

	_, err := op.Dump(context.Background(), testTarget(), "shop; rm -rf /")
	assert.ErrorIs(t, err, command.ErrInvalidName)
}

func TestOperator_Dump_NonZeroExitLeavesNothing(t *testing.T) {
	ex := &fakeExecutor{
		stdout: []byte("partial"),
		result: backend.Result{ExitCode: 1, Stderr: "fatal: database does not exist"},
	}
	op := testOperator(t, ex)

	_, err := op.Dump(context.Background(), testTarget(), "shop")
	assert.ErrorIs(t, err, backend.ErrExecution)

	arts, err := op.Catalog().List()
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestOperator_Dump_EmptyOutputLeavesNothing(t *testing.T) {
	op := testOperator(t, &fakeExecutor{stdout: nil})

	_, err := op.Dump(context.Background(), testTarget(), "shop")
	assert.Error(t, err)

	arts, err := op.Catalog().List()
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestOperator_Dump_PassesCredentialViaEnv(t *testing.T) {
	ex := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, ex)
	op.registry.CacheSecret("pg-main", target.Secret{DBPassword: "s3cr3t"})

	_, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", ex.lastCmd.Env["PGPASSWORD"])
	for _, arg := range ex.lastCmd.Argv {
		assert.NotContains(t, arg, "s3cr3t")
	}
}

func TestOperator_DumpMany(t *testing.T) {
	ex := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, ex)

	arts, err := op.DumpMany(context.Background(), testTarget(), []string{"shop", "billing"})
	require.NoError(t, err)
	assert.Len(t, arts, 2)
}

func TestOperator_Restore(t *testing.T) {
	dumpEx := &fakeExecutor{stdout: []byte("archive bytes")}
	op := testOperator(t, dumpEx)
	art, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	restoreEx := &fakeExecutor{}
	op.executorFor = func(*target.Target, target.Secret) (backend.Executor, error) {
		return restoreEx, nil
	}

	result, err := op.Restore(context.Background(), testTarget(), art.Name, "")
	require.NoError(t, err)
	assert.False(t, result.Warnings)
	// Database comes from the sidecar when not overridden.
	assert.Equal(t, "shop", result.Database)
	assert.Equal(t, "archive bytes", restoreEx.stdin.String())
	assert.Equal(t, "pg_restore", restoreEx.lastCmd.Argv[0])
}

func TestOperator_Restore_NonZeroExitIsWarning(t *testing.T) {
	dumpEx := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, dumpEx)
	art, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	op.executorFor = func(*target.Target, target.Secret) (backend.Executor, error) {
		return &fakeExecutor{result: backend.Result{ExitCode: 1, Stderr: "role does not exist"}}, nil
	}

	result, err := op.Restore(context.Background(), testTarget(), art.Name, "")
	require.NoError(t, err)
	assert.True(t, result.Warnings)
}

func TestOperator_Restore_TransportFailureIsFatal(t *testing.T) {
	dumpEx := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, dumpEx)
	art, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	op.executorFor = func(*target.Target, target.Secret) (backend.Executor, error) {
		return &fakeExecutor{startErr: backend.ErrUnavailable}, nil
	}

	_, err = op.Restore(context.Background(), testTarget(), art.Name, "")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestOperator_Restore_MissingSidecarFallsBackToDefault(t *testing.T) {
	ex := &fakeExecutor{}
	op := testOperator(t, ex)

	name := catalog.Name("shop", time.Now().UTC(), false)
	require.NoError(t, os.WriteFile(op.Catalog().Path(name), []byte("archive"), 0o600))

	result, err := op.Restore(context.Background(), testTarget(), name, "")
	require.NoError(t, err)
	assert.Equal(t, "main", result.Database)
}

func TestOperator_Restore_ExplicitDatabaseWins(t *testing.T) {
	dumpEx := &fakeExecutor{stdout: []byte("archive")}
	op := testOperator(t, dumpEx)
	art, err := op.Dump(context.Background(), testTarget(), "shop")
	require.NoError(t, err)

	op.executorFor = func(*target.Target, target.Secret) (backend.Executor, error) {
		return &fakeExecutor{}, nil
	}
	result, err := op.Restore(context.Background(), testTarget(), art.Name, "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", result.Database)
}

func TestOperator_Restore_UnknownArtifact(t *testing.T) {
	op := testOperator(t, &fakeExecutor{})

	_, err := op.Restore(context.Background(), testTarget(),
		"backup_gone_2024-01-15T02-00-00-000Z.dump", "")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOperator_Restore_EmptyArtifactRejected(t *testing.T) {
	op := testOperator(t, &fakeExecutor{})

	name := catalog.Name("shop", time.Now().UTC(), false)
	require.NoError(t, os.WriteFile(op.Catalog().Path(name), nil, 0o600))

	_, err := op.Restore(context.Background(), testTarget(), name, "")
	assert.ErrorIs(t, err, catalog.ErrEmptyArtifact)
}

func TestOperator_ListDatabases(t *testing.T) {
	ex := &fakeExecutor{stdout: []byte("postgres\nshop\n\nbilling\n")}
	op := testOperator(t, ex)

	databases, err := op.ListDatabases(context.Background(), testTarget())
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres", "shop", "billing"}, databases)
	assert.Equal(t, "psql", ex.lastCmd.Argv[0])
}

func TestOperator_ProbeReady_Immediate(t *testing.T) {
	op := testOperator(t, &fakeExecutor{})

	err := op.ProbeReady(context.Background(), testTarget(), time.Second)
	assert.NoError(t, err)
}

func TestOperator_ProbeReady_Timeout(t *testing.T) {
	op := testOperator(t, &fakeExecutor{result: backend.Result{ExitCode: 1}})

	err := op.ProbeReady(context.Background(), testTarget(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrProbeTimeout)
}

func TestOperator_ProbeReady_UnavailableFailsFast(t *testing.T) {
	op := testOperator(t, &fakeExecutor{startErr: backend.ErrUnavailable})

	start := time.Now()
	err := op.ProbeReady(context.Background(), testTarget(), 5*time.Second)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}
