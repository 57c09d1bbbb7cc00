package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sobre/internal/domain"
)

// register: publish the public key so peers can encrypt for us.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register your public key with the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, _, err := wire.Keys.EnsureKeyPair(cmd.Context())
			if err != nil {
				return err
			}
			exported, err := wire.Keys.ExportPublic(pair.Public)
			if err != nil {
				return err
			}
			if err := wire.Directory.RegisterPublicKey(cmd.Context(), domain.Identity(self), exported); err != nil {
				return err
			}
			fmt.Println("registered")
			return nil
		},
	}
}
