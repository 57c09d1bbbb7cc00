package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Ensure a key pair exists for your identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, generated, err := wire.Keys.EnsureKeyPair(cmd.Context())
			if err != nil {
				return err
			}
			if generated {
				fmt.Println("Key pair created.")
			} else {
				fmt.Println("Key pair already present.")
			}
			fmt.Printf("Fingerprint: %s\n", wire.Keys.Fingerprint(pair.Public))
			return nil
		},
	}
}
