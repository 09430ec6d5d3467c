// Package sshtest runs an in-process SSH server for tests. Commands are
// executed by the local shell with HOME pointed at a temporary directory,
// so uploads, chmod and tar behave as they would on a real node.
package sshtest

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/adam-stokes/ogc-sub000/internal/util/keygen"
)

// Handler runs one command and returns its exit status.
type Handler func(cmd string, stdin io.Reader, stdout, stderr io.Writer) int

// Server is a test SSH server accepting a single authorized key.
type Server struct {
	Host string
	Port int
	// Home is the HOME of commands run by the default handler.
	Home string

	listener net.Listener
	config   *ssh.ServerConfig

	mu       sync.Mutex
	handler  Handler
	commands []string
}

// NewServer starts a server on 127.0.0.1 that accepts authorized and is
// stopped when the test ends.
func NewServer(t testing.TB, authorized ssh.PublicKey) *Server {
	t.Helper()

	hostKey, err := keygen.GenerateEd25519KeyPair("")
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.ParsePrivateKey(hostKey.PrivateKey)
	if err != nil {
		t.Fatalf("failed to parse host key: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized key")
		},
	}
	cfg.AddHostKey(signer)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)

	s := &Server{
		Host:     addr.IP.String(),
		Port:     addr.Port,
		Home:     t.TempDir(),
		listener: l,
		config:   cfg,
	}
	s.handler = s.shell
	t.Cleanup(func() { _ = l.Close() })

	go s.serve()
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Handle replaces the command handler.
func (s *Server) Handle(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Commands returns every command received so far, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) shell(cmd string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := exec.Command("/bin/sh", "-c", cmd) //nolint:gosec // test server
	c.Dir = s.Home
	c.Env = append(os.Environ(), "HOME="+s.Home)
	c.Stdin = stdin
	c.Stdout = stdout
	c.Stderr = stderr
	err := c.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	}
	_, _ = io.WriteString(stderr, err.Error())
	return 255
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sc, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer func() { _ = sc.Close() }()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "only sessions are supported")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, chReqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()
	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		h := s.handler
		s.mu.Unlock()

		code := h(payload.Command, ch, ch, ch.Stderr())
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)})) //nolint:gosec // exit codes are small
		return
	}
}
