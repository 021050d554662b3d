package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kebairia/backhaul/internal/command"
)

// Kind identifies the transport used to reach a target.
type Kind string

const (
	KindLocalContainer  Kind = "local-container"
	KindRemoteShell     Kind = "remote-shell"
	KindOrchestratedPod Kind = "orchestrated-pod"
)

// ParseKind maps a user-supplied backend name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLocalContainer, KindRemoteShell, KindOrchestratedPod:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown backend %q", s)
}

// ErrUnavailable indicates the underlying runtime (container daemon, shell
// transport, cluster CLI) could not be reached at all. Distinct from a
// target that simply does not exist.
var ErrUnavailable = errors.New("backend unavailable")

// ErrExecution indicates a command ran but exited non-zero.
var ErrExecution = errors.New("command failed")

// Result is the terminal state of one executed command. Stderr is
// accumulated for diagnostics; stdout is never buffered here.
type Result struct {
	ExitCode int
	Stderr   string
}

// Err converts a non-zero exit into an ErrExecution for callers that treat
// it as fatal.
func (r Result) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return fmt.Errorf("%w: exit status %d: %s", ErrExecution, r.ExitCode, r.Stderr)
}

// Session is a started command whose standard streams belong to the caller.
// The caller must drain Stdout before Wait and close Stdin when done.
type Session interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// Wait blocks until the process or channel terminates. A non-zero exit
	// is reported through Result, not through the error; the error is
	// reserved for transport-level failures.
	Wait() (Result, error)
	// Kill tears the command down. Safe to call after Wait.
	Kill() error
}

// Executor launches commands against one concrete target. The three
// implementations (local container, remote shell, orchestrated pod) are the
// only backend-specific code in the repository.
type Executor interface {
	Kind() Kind
	// Describe names the concrete target for logs and error context.
	Describe() string
	// Start launches cmd and hands its streams to the caller.
	Start(ctx context.Context, cmd command.Command) (Session, error)
}

// Run executes cmd to completion on top of the streaming primitive. stdin
// and stdout may be nil; stdout is streamed into the writer, never buffered.
func Run(ctx context.Context, ex Executor, cmd command.Command, stdin io.Reader, stdout io.Writer) (Result, error) {
	sess, err := ex.Start(ctx, cmd)
	if err != nil {
		return Result{}, err
	}

	inErr := make(chan error, 1)
	go func() {
		defer sess.Stdin().Close()
		if stdin == nil {
			inErr <- nil
			return
		}
		_, err := io.Copy(sess.Stdin(), stdin)
		inErr <- err
	}()

	if stdout == nil {
		stdout = io.Discard
	}
	if _, err := io.Copy(stdout, sess.Stdout()); err != nil {
		_ = sess.Kill()
		<-inErr
		_, _ = sess.Wait()
		return Result{}, fmt.Errorf("read stdout: %w", err)
	}

	if err := <-inErr; err != nil {
		_ = sess.Kill()
		_, _ = sess.Wait()
		return Result{}, fmt.Errorf("write stdin: %w", err)
	}

	return sess.Wait()
}
