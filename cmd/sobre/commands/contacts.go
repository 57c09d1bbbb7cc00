package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List contacts you have exchanged messages with",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Conversation.LoadContacts(cmd.Context()); err != nil {
				return err
			}
			contacts := wire.Conversation.Contacts()
			if len(contacts) == 0 {
				fmt.Println("no contacts yet")
				return nil
			}
			for _, c := range contacts {
				fmt.Println(c)
			}
			return nil
		},
	}
}
