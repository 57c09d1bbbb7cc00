package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sobre/internal/domain"
)

// chat <peer>: interactive session. Lines from stdin are sent; inbound
// messages print as they arrive.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer>",
		Short: "Open an interactive conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.Identity(args[0])

			wire.Conversation.OnMessage = func(m domain.DecryptedMessage) {
				fmt.Printf("\r%s: %s\n> ", m.SenderID, m.PlainText)
			}
			if err := wire.Conversation.Start(cmd.Context()); err != nil {
				return err
			}
			defer wire.Transport.Close()

			if wire.Conversation.ConnState() != domain.Connected {
				return fmt.Errorf("relay unreachable")
			}
			if err := wire.Conversation.SelectContact(cmd.Context(), peer); err != nil {
				return err
			}
			for _, m := range wire.Conversation.Messages() {
				fmt.Printf("%s: %s\n", m.SenderID, m.PlainText)
			}

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					fmt.Print("> ")
					continue
				}
				if line == "/quit" {
					return nil
				}
				if _, err := wire.Conversation.SendMessage(cmd.Context(), line); err != nil {
					fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				}
				fmt.Print("> ")
			}
			return scanner.Err()
		},
	}
}
