package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sobre/internal/domain"
)

// history <peer>: print the decrypted conversation with <peer>.
func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <peer>",
		Short: "Show the decrypted message history with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := wire.Keys.EnsureKeyPair(cmd.Context()); err != nil {
				return err
			}
			// History decryption needs the pair loaded into the session.
			if err := wire.Conversation.Start(cmd.Context()); err != nil {
				return err
			}
			defer wire.Transport.Close()

			peer := domain.Identity(args[0])
			if err := wire.Conversation.SelectContact(cmd.Context(), peer); err != nil {
				return err
			}
			for _, m := range wire.Conversation.Messages() {
				fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.SenderID, m.PlainText)
			}
			return nil
		},
	}
}
