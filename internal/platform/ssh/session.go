package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Result is the outcome of a remote command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Session is an authenticated connection to one node. It is safe to run
// several commands on a Session concurrently; each gets its own channel.
type Session struct {
	client *ssh.Client
	host   string
}

// Host returns the host:port the session is connected to.
func (s *Session) Host() string {
	return s.host
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Exec runs cmd and waits for it. A nonzero exit status is reported in
// the Result, not as an error. If ctx ends first the channel is closed
// and ctx.Err() returned; the remote process is not signalled.
func (s *Session) Exec(ctx context.Context, cmd string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	code, err := s.run(ctx, cmd, nil, &stdout, &stderr)
	if err != nil {
		return nil, err
	}
	return &Result{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (s *Session) run(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	sess.Stdin = stdin
	sess.Stdout = stdout
	sess.Stderr = stderr
	if err := sess.Start(cmd); err != nil {
		return 0, fmt.Errorf("failed to start command on %s: %w", s.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return 0, ctx.Err()
	case err := <-done:
		return exitCode(err, s.host)
	}
}

func exitCode(err error, host string) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return 0, fmt.Errorf("command failed on %s: %w", host, err)
}

// Upload streams r into remotePath, creating its directory, and sets mode.
func (s *Session) Upload(ctx context.Context, r io.Reader, remotePath string, mode os.FileMode) error {
	q := QuotePath(remotePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && chmod %04o %s", QuotePath(path.Dir(remotePath)), q, mode.Perm(), q)

	var stderr bytes.Buffer
	code, err := s.run(ctx, cmd, r, io.Discard, &stderr)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}
	if code != 0 {
		return fmt.Errorf("failed to upload %s: exit status %d: %s", remotePath, code, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Download writes the contents of remotePath to w.
func (s *Session) Download(ctx context.Context, remotePath string, w io.Writer) error {
	return s.stream(ctx, "cat "+QuotePath(remotePath), remotePath, w)
}

// Archive writes remotePath, file or directory, to w as a gzipped tar.
func (s *Session) Archive(ctx context.Context, remotePath string, w io.Writer) error {
	cmd := fmt.Sprintf("tar -czf - -C %s %s", QuotePath(path.Dir(remotePath)), QuotePath(path.Base(remotePath)))
	return s.stream(ctx, cmd, remotePath, w)
}

func (s *Session) stream(ctx context.Context, cmd, remotePath string, w io.Writer) error {
	var stderr bytes.Buffer
	code, err := s.run(ctx, cmd, nil, w, &stderr)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", remotePath, err)
	}
	if code != 0 {
		return fmt.Errorf("failed to read %s: exit status %d: %s", remotePath, code, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Put copies a local file to remotePath, keeping its permission bits.
func (s *Session) Put(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath) //nolint:gosec // path chosen by the operator
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}
	return s.Upload(ctx, f, remotePath, info.Mode())
}

// Get copies remotePath to a local file, creating parent directories.
// The local file is removed if the transfer fails.
func (s *Session) Get(ctx context.Context, remotePath, localPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	f, err := os.Create(localPath) //nolint:gosec // path chosen by the operator
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(localPath)
		}
	}()
	return s.Download(ctx, remotePath, f)
}

// Shell attaches an interactive login shell to the given terminal. When
// in is a terminal it is put in raw mode for the life of the shell.
func (s *Session) Shell(ctx context.Context, in *os.File, out, errOut io.Writer) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	width, height := 80, 24
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	termType := os.Getenv("TERM")
	if termType == "" {
		termType = "xterm-256color"
	}
	if err := sess.RequestPty(termType, height, width, modes); err != nil {
		return fmt.Errorf("failed to request pty: %w", err)
	}

	sess.Stdin = in
	sess.Stdout = out
	sess.Stderr = errOut
	if err := sess.Shell(); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		_, err = exitCode(err, s.host)
		return err
	}
}

// QuotePath single-quotes p for a POSIX shell. A leading ~/ is kept
// outside the quotes so it still refers to the login user's home.
func QuotePath(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return `"$HOME"/` + quote(rest)
	}
	if p == "~" {
		return `"$HOME"`
	}
	return quote(p)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
