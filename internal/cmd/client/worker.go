package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/courierd/courier/internal/worker"
	"github.com/courierd/courier/internal/workers"
	logpkg "github.com/courierd/courier/pkg/log"
)

// NewWorkerCommand constructs the `worker` command group: the long-running
// dequeuer and reporter loops plus liveness listings.
func NewWorkerCommand(baseURL BaseURLFunc) *cobra.Command {
	workerCmd := &cobra.Command{Use: "worker", Short: "Worker operations"}
	workerCmd.AddCommand(
		newWorkerWorkCommand(baseURL),
		newWorkerReportCommand(baseURL),
		newWorkerListCommand(baseURL),
	)
	return workerCmd
}

func workerLogger(cmd *cobra.Command) *logpkg.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil {
		parsed = logpkg.InfoLevel
	}
	return logpkg.New(logpkg.WithLevel(parsed))
}

// newWorkerWorkCommand constructs `worker work`: poll a queue, deliver
// claimed transmissions to destination devices, and write back the result.
func newWorkerWorkCommand(baseURL BaseURLFunc) *cobra.Command {
	workCmd := &cobra.Command{
		Use:   "work",
		Short: "Run a dequeuer loop against one queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guid, _ := cmd.Flags().GetString("guid")
			queue, _ := cmd.Flags().GetString("queue")
			pollMs, _ := cmd.Flags().GetInt("poll-ms")
			dialMs, _ := cmd.Flags().GetInt("dial-timeout-ms")
			if guid == "" || queue == "" {
				return fmt.Errorf("--guid and --queue are required")
			}
			dq := worker.NewDequeuer(newAPI(baseURL), worker.Options{
				GUID:         guid,
				Queue:        queue,
				PollInterval: time.Duration(pollMs) * time.Millisecond,
				DialTimeout:  time.Duration(dialMs) * time.Millisecond,
				Logger:       workerLogger(cmd),
			})
			return dq.Run(cmd.Context())
		},
	}
	workCmd.Flags().String("guid", "", "Worker GUID")
	workCmd.Flags().String("queue", "", "Queue GUID to drain")
	workCmd.Flags().Int("poll-ms", 1000, "Sleep after an empty claim, in ms")
	workCmd.Flags().Int("dial-timeout-ms", 5000, "Device dial timeout, in ms")
	workCmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	return workCmd
}

// newWorkerReportCommand constructs `worker report`: carry failure reports
// back to origin devices and record their retry decisions.
func newWorkerReportCommand(baseURL BaseURLFunc) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run a reporter loop for failure reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guid, _ := cmd.Flags().GetString("guid")
			pollMs, _ := cmd.Flags().GetInt("poll-ms")
			dialMs, _ := cmd.Flags().GetInt("dial-timeout-ms")
			if guid == "" {
				return fmt.Errorf("--guid is required")
			}
			rp := worker.NewReporter(newAPI(baseURL), worker.Options{
				GUID:         guid,
				PollInterval: time.Duration(pollMs) * time.Millisecond,
				DialTimeout:  time.Duration(dialMs) * time.Millisecond,
				Logger:       workerLogger(cmd),
			})
			return rp.Run(cmd.Context())
		},
	}
	reportCmd.Flags().String("guid", "", "Worker GUID")
	reportCmd.Flags().Int("poll-ms", 1000, "Sleep after an empty claim, in ms")
	reportCmd.Flags().Int("dial-timeout-ms", 5000, "Device dial timeout, in ms")
	reportCmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	return reportCmd
}

// newWorkerListCommand constructs `worker list`.
func newWorkerListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List responsive workers of a kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kindStr, _ := cmd.Flags().GetString("kind")
			var kind workers.Kind
			switch kindStr {
			case "dequeuer":
				kind = workers.KindDequeuer
			case "reporter":
				kind = workers.KindReporter
			default:
				return fmt.Errorf("--kind must be dequeuer or reporter")
			}
			list, err := newAPI(baseURL).ListResponsiveWorkers(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	listCmd.Flags().String("kind", "dequeuer", "Worker kind: dequeuer|reporter")
	return listCmd
}
