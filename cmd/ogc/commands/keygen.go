package commands

import (
	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Keygen returns the keygen command.
func Keygen() *cobra.Command {
	opts := handlers.KeygenOptions{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an SSH key pair for a plan",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Keygen(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "output", "o", "id_ed25519", "Private key path; the public key gets .pub")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "ed25519", "Key type: ed25519 or rsa")
	cmd.Flags().StringVar(&opts.Comment, "comment", "ogc", "Public key comment (ed25519 only)")

	return cmd
}
