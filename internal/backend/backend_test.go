package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/backhaul/internal/command"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"local-container", "remote-shell", "orchestrated-pod"} {
		kind, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), kind)
	}
	_, err := ParseKind("mainframe")
	assert.Error(t, err)
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Result{ExitCode: 0}.Err())

	err := Result{ExitCode: 2, Stderr: "boom"}.Err()
	assert.ErrorIs(t, err, ErrExecution)
	assert.Contains(t, err.Error(), "boom")
}

func TestContainerInfo_Running(t *testing.T) {
	assert.True(t, ContainerInfo{State: "running"}.Running())
	assert.True(t, ContainerInfo{State: "Running"}.Running())
	assert.False(t, ContainerInfo{State: "exited"}.Running())
}

func TestDocker_ExecArgv(t *testing.T) {
	d := &Docker{Container: "pg-main"}
	argv := d.execArgv(command.Command{
		Argv: []string{"pg_dump", "-d", "shop", "-Fc"},
		Env:  map[string]string{"PGPASSWORD": "pw"},
	})
	assert.Equal(t, []string{
		"exec", "-i", "-e", "PGPASSWORD=pw",
		"pg-main", "pg_dump", "-d", "shop", "-Fc",
	}, argv)
}

func TestDocker_ExecArgvNoEnv(t *testing.T) {
	d := &Docker{Container: "pg-main"}
	argv := d.execArgv(command.Command{Argv: []string{"pg_isready"}})
	assert.Equal(t, []string{"exec", "-i", "pg-main", "pg_isready"}, argv)
}

func TestKubectl_ExecArgv(t *testing.T) {
	k := &Kubectl{Namespace: "data", Pod: "pg-0", Container: "postgres"}
	argv := k.execArgv(command.Command{
		Argv: []string{"pg_dump", "-d", "shop", "-Fc"},
		Env:  map[string]string{"PGPASSWORD": "pw"},
	})
	assert.Equal(t, []string{
		"exec", "-i", "-n", "data", "pg-0", "-c", "postgres", "--",
		"env", "PGPASSWORD=pw",
		"pg_dump", "-d", "shop", "-Fc",
	}, argv)
}

func TestKubectl_ExecArgvKubeconfig(t *testing.T) {
	k := &Kubectl{Namespace: "data", Pod: "pg-0", Kubeconfig: "/etc/kube/conf"}
	argv := k.execArgv(command.Command{Argv: []string{"pg_isready"}})
	assert.Equal(t, []string{
		"--kubeconfig", "/etc/kube/conf",
		"exec", "-i", "-n", "data", "pg-0", "--", "pg_isready",
	}, argv)
}

func TestSSH_RemoteLine(t *testing.T) {
	s := &SSH{Host: "db.example.com"}

	plain := s.remoteLine(command.Command{Argv: []string{"pg_isready"}})
	assert.Equal(t, "pg_isready", plain)

	withEnv := s.remoteLine(command.Command{
		Argv: []string{"pg_dump", "-d", "shop", "-Fc"},
		Env:  map[string]string{"PGPASSWORD": "p w"},
	})
	assert.Equal(t, `bash -c 'PGPASSWORD='\''p w'\'' pg_dump -d shop -Fc'`, withEnv)
}

func TestSSH_ClientConfigRequiresCredentials(t *testing.T) {
	s := &SSH{Host: "db.example.com", User: "deploy"}
	_, err := s.clientConfig()
	assert.ErrorIs(t, err, ErrUnavailable)

	s.Password = "pw"
	cfg, err := s.clientConfig()
	require.NoError(t, err)
	assert.Equal(t, "deploy", cfg.User)
	assert.Len(t, cfg.Auth, 1)
}

// stubSession drives Run without any real process.
type stubSession struct {
	out     io.Reader
	stdin   bytes.Buffer
	result  Result
	waitErr error
	killed  bool
}

func (s *stubSession) Stdin() io.WriteCloser  { return nopWriteCloser{&s.stdin} }
func (s *stubSession) Stdout() io.Reader      { return s.out }
func (s *stubSession) Wait() (Result, error)  { return s.result, s.waitErr }
func (s *stubSession) Kill() error            { s.killed = true; return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type stubExecutor struct {
	sess     *stubSession
	startErr error
}

func (e *stubExecutor) Kind() Kind       { return KindLocalContainer }
func (e *stubExecutor) Describe() string { return "stub" }

func (e *stubExecutor) Start(ctx context.Context, cmd command.Command) (Session, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	return e.sess, nil
}

func TestRun_StreamsBothDirections(t *testing.T) {
	sess := &stubSession{out: bytes.NewReader([]byte("output"))}
	ex := &stubExecutor{sess: sess}

	var out bytes.Buffer
	res, err := Run(context.Background(), ex, command.Command{Argv: []string{"cat"}},
		bytes.NewReader([]byte("input")), &out)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "output", out.String())
	assert.Equal(t, "input", sess.stdin.String())
}

func TestRun_NilStreams(t *testing.T) {
	sess := &stubSession{out: bytes.NewReader([]byte("ignored"))}
	ex := &stubExecutor{sess: sess}

	res, err := Run(context.Background(), ex, command.Command{Argv: []string{"true"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_StartError(t *testing.T) {
	ex := &stubExecutor{startErr: ErrUnavailable}
	_, err := Run(context.Background(), ex, command.Command{}, nil, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRun_NonZeroExitIsResultNotError(t *testing.T) {
	sess := &stubSession{
		out:    bytes.NewReader(nil),
		result: Result{ExitCode: 3, Stderr: "warning noise"},
	}
	ex := &stubExecutor{sess: sess}

	res, err := Run(context.Background(), ex, command.Command{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "warning noise", res.Stderr)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream torn down") }

func TestRun_StdoutFailureKillsSession(t *testing.T) {
	sess := &stubSession{out: failingReader{}}
	ex := &stubExecutor{sess: sess}

	_, err := Run(context.Background(), ex, command.Command{}, nil, io.Discard)
	require.Error(t, err)
	assert.True(t, sess.killed)
}
