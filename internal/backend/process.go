package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// execSession wraps a local child process (docker or kubectl). The child is
// bound to ctx, so cancelling the owning operation kills it rather than
// leaving it orphaned.
type execSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

// startProcess spawns bin with argv and pipes attached. A missing binary is
// reported as ErrUnavailable so callers can distinguish "install the backend"
// from a failed command.
func startProcess(ctx context.Context, bin string, argv []string) (Session, error) {
	cmd := exec.CommandContext(ctx, bin, argv...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, bin)
		}
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	return &execSession{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (s *execSession) Stdin() io.WriteCloser { return s.stdin }
func (s *execSession) Stdout() io.Reader     { return s.stdout }

func (s *execSession) Wait() (Result, error) {
	err := s.cmd.Wait()
	if err == nil {
		return Result{ExitCode: 0, Stderr: s.stderr.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			ExitCode: exitErr.ExitCode(),
			Stderr:   s.stderr.String(),
		}, nil
	}
	return Result{}, fmt.Errorf("wait: %w", err)
}

func (s *execSession) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
