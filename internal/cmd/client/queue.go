package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue operations"}
	queueCmd.AddCommand(newQueueCreateCommand(baseURL))
	return queueCmd
}

// newQueueCreateCommand constructs the `queue create` subcommand.
func newQueueCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guid, _ := cmd.Flags().GetString("guid")
			if guid == "" {
				return fmt.Errorf("--guid is required")
			}
			q, err := newAPI(baseURL).RegisterQueue(cmd.Context(), guid)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}
	createCmd.Flags().String("guid", "", "Queue GUID")
	return createCmd
}
