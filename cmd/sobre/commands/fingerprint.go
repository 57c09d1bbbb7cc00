package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprint of your public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, ok := wire.Keys.Load(cmd.Context())
			if !ok {
				return fmt.Errorf("no key pair stored; run init first")
			}
			fmt.Println(wire.Keys.Fingerprint(pair.Public))
			return nil
		},
	}
}
