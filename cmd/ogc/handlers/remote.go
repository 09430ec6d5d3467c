package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/adam-stokes/ogc-sub000/internal/platform/ssh"
)

// SSH opens an interactive shell on a node.
func SSH(ctx context.Context, g *GlobalOptions, name string) error {
	return withSession(ctx, g, name, func(s *ssh.Session) error {
		return s.Shell(ctx, os.Stdin, os.Stdout, os.Stderr)
	})
}

// Push copies a local file to a node.
func Push(ctx context.Context, g *GlobalOptions, name, local, remote string) error {
	return withSession(ctx, g, name, func(s *ssh.Session) error {
		if err := s.Put(ctx, local, remote); err != nil {
			return fmt.Errorf("failed to push %s to %s:%s: %w", local, name, remote, err)
		}
		fmt.Fprintf(stdout, "%s %s → %s:%s\n", okStyle.Render("pushed"), local, name, remote)
		return nil
	})
}

// Pull copies a file from a node.
func Pull(ctx context.Context, g *GlobalOptions, name, remote, local string) error {
	return withSession(ctx, g, name, func(s *ssh.Session) error {
		if err := s.Get(ctx, remote, local); err != nil {
			return fmt.Errorf("failed to pull %s:%s to %s: %w", name, remote, local, err)
		}
		fmt.Fprintf(stdout, "%s %s:%s → %s\n", okStyle.Render("pulled"), name, remote, local)
		return nil
	})
}

func withSession(ctx context.Context, g *GlobalOptions, name string, fn func(*ssh.Session) error) error {
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	node, err := lookupNode(ctx, e.Store, name)
	if err != nil {
		return err
	}
	s, err := ssh.NewDialer(e.Timeouts).Dial(ctx, node)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}
