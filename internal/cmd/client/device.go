// Package client contains Cobra CLI commands for the courier relay.
package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeviceCommand constructs the `device` command group and subcommands.
func NewDeviceCommand(baseURL BaseURLFunc) *cobra.Command {
	deviceCmd := &cobra.Command{Use: "device", Short: "Device operations"}
	deviceCmd.AddCommand(
		newDeviceAnnounceCommand(baseURL),
		newDeviceListCommand(baseURL),
		newDeviceSendCommand(baseURL),
	)
	return deviceCmd
}

// newDeviceAnnounceCommand constructs the `device announce` subcommand.
func newDeviceAnnounceCommand(baseURL BaseURLFunc) *cobra.Command {
	announceCmd := &cobra.Command{
		Use:   "announce",
		Short: "Announce a device and re-arm its waiting retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guid, _ := cmd.Flags().GetString("guid")
			purpose, _ := cmd.Flags().GetString("purpose")
			port, _ := cmd.Flags().GetInt("port")
			if guid == "" || purpose == "" {
				return fmt.Errorf("--guid and --purpose are required")
			}
			dev, err := newAPI(baseURL).AnnounceDevice(cmd.Context(), guid, purpose, port)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dev)
		},
	}
	announceCmd.Flags().String("guid", "", "Device GUID")
	announceCmd.Flags().String("purpose", "", "Purpose GUID")
	announceCmd.Flags().Int("port", 0, "Port the device listens on for deliveries")
	return announceCmd
}

// newDeviceListCommand constructs the `device list` subcommand.
func newDeviceListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List devices announced with a purpose",
		RunE: func(cmd *cobra.Command, _ []string) error {
			purpose, _ := cmd.Flags().GetString("purpose")
			if purpose == "" {
				return fmt.Errorf("--purpose is required")
			}
			devs, err := newAPI(baseURL).ListDevices(cmd.Context(), purpose)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devs)
		},
	}
	listCmd.Flags().String("purpose", "", "Purpose GUID")
	return listCmd
}

// newDeviceSendCommand constructs the `device send` subcommand, which
// enqueues a transmission on a device's behalf.
func newDeviceSendCommand(baseURL BaseURLFunc) *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Enqueue a transmission from one device to another",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			source, _ := cmd.Flags().GetString("source")
			dest, _ := cmd.Flags().GetString("dest")
			payload, _ := cmd.Flags().GetString("payload")
			if queue == "" || source == "" || dest == "" {
				return fmt.Errorf("--queue, --source, and --dest are required")
			}
			job, err := newAPI(baseURL).EnqueueTransmission(cmd.Context(), queue, source, dest, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	sendCmd.Flags().String("queue", "", "Queue GUID")
	sendCmd.Flags().String("source", "", "Source device GUID")
	sendCmd.Flags().String("dest", "", "Destination device GUID")
	sendCmd.Flags().String("payload", "{}", "JSON payload (opaque to the relay)")
	return sendCmd
}
