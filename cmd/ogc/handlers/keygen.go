package handlers

import (
	"fmt"

	"github.com/adam-stokes/ogc-sub000/internal/util/keygen"
)

// KeygenOptions holds options for the keygen command.
type KeygenOptions struct {
	Path    string
	Type    string // ed25519 or rsa
	Comment string
}

const rsaBits = 4096

// Keygen writes a new key pair to opts.Path and opts.Path.pub. Existing
// files are never overwritten.
func Keygen(opts KeygenOptions) error {
	var (
		kp  *keygen.KeyPair
		err error
	)
	switch opts.Type {
	case "", "ed25519":
		kp, err = keygen.GenerateEd25519KeyPair(opts.Comment)
	case "rsa":
		kp, err = keygen.GenerateRSAKeyPair(rsaBits)
	default:
		return fmt.Errorf("unknown key type %q (want ed25519 or rsa)", opts.Type)
	}
	if err != nil {
		return err
	}
	if err := kp.WriteFiles(opts.Path); err != nil {
		return fmt.Errorf("failed to write key pair: %w", err)
	}
	fmt.Fprintf(stdout, "%s %s\n%s %s.pub\n", okStyle.Render("private"), opts.Path, okStyle.Render("public "), opts.Path)
	return nil
}
