package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sobre/internal/domain"
)

// send <peer> <message>: encrypt and publish one message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a contact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Conversation.Start(cmd.Context()); err != nil {
				return err
			}
			defer wire.Transport.Close()

			if wire.Conversation.ConnState() != domain.Connected {
				return fmt.Errorf("relay unreachable; message not sent")
			}
			if err := wire.Conversation.SelectContact(cmd.Context(), domain.Identity(args[0])); err != nil {
				return err
			}
			if _, err := wire.Conversation.SendMessage(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
