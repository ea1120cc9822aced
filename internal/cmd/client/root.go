package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the courier client.
// It registers the device, queue, worker, and admin command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "courier",
		Short: "Courier client commands",
	}
	root.AddCommand(NewDeviceCommand(baseURL))
	root.AddCommand(NewQueueCommand(baseURL))
	root.AddCommand(NewWorkerCommand(baseURL))
	root.AddCommand(NewAdminCommand(baseURL))
	return root
}
