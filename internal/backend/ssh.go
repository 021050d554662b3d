package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/kebairia/backhaul/internal/command"
)

const sshDialTimeout = 10 * time.Second

// SSH executes commands on a remote host over a secure-shell session.
// Authentication uses a password or PEM key material, both held only in
// memory.
type SSH struct {
	Host     string
	Port     string
	User     string
	Password string
	Key      []byte
}

var _ Executor = (*SSH)(nil)

func (s *SSH) Kind() Kind       { return KindRemoteShell }
func (s *SSH) Describe() string { return "host " + s.Host }

func (s *SSH) Start(ctx context.Context, cmd command.Command) (Session, error) {
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	port := s.Port
	if port == "" {
		port = "22"
	}
	addr := net.JoinHostPort(s.Host, port)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: open session on %s: %v", ErrUnavailable, addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	sess.Stderr = stderr

	if err := sess.Start(s.remoteLine(cmd)); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("%w: start remote command: %v", ErrUnavailable, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
			client.Close()
		case <-done:
		}
	}()

	return &sshSession{
		client: client,
		sess:   sess,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		done:   done,
	}, nil
}

// remoteLine renders the one opaque command line the exec channel takes.
// There is no separate environment map on the channel, so the credential
// rides as an assignment prefix inside a bash -c wrapper, never as a bare
// argument.
func (s *SSH) remoteLine(cmd command.Command) string {
	line := cmd.Shell()
	if len(cmd.Env) > 0 {
		line = "bash -c " + shellQuote(line)
	}
	return line
}

func (s *SSH) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if len(s.Key) > 0 {
		signer, err := ssh.ParsePrivateKey(s.Key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if s.Password != "" {
		auth = append(auth, ssh.Password(s.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: no ssh credentials for %s", ErrUnavailable, s.Host)
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	}, nil
}

type sshSession struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
	stderr *bytes.Buffer
	done   chan struct{}
}

func (s *sshSession) Stdin() io.WriteCloser { return s.stdin }
func (s *sshSession) Stdout() io.Reader     { return s.stdout }

func (s *sshSession) Wait() (Result, error) {
	err := s.sess.Wait()
	close(s.done)
	defer s.client.Close()

	if err == nil {
		return Result{ExitCode: 0, Stderr: s.stderr.String()}, nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return Result{
			ExitCode: exitErr.ExitStatus(),
			Stderr:   s.stderr.String(),
		}, nil
	}
	return Result{}, fmt.Errorf("wait: %w", err)
}

func (s *sshSession) Kill() error {
	_ = s.sess.Signal(ssh.SIGKILL)
	return s.sess.Close()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
