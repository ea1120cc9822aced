package client

import (
	"github.com/spf13/cobra"
)

// NewAdminCommand constructs the `admin` command group.
func NewAdminCommand(baseURL BaseURLFunc) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Admin operations"}
	adminCmd.AddCommand(newAdminJobsCommand(baseURL))
	return adminCmd
}

// newAdminJobsCommand constructs `admin jobs`, a ledger listing with an
// optional server-side CEL filter.
func newAdminJobsCommand(baseURL BaseURLFunc) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List ledger jobs oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledgerName, _ := cmd.Flags().GetString("ledger")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			jobs, err := newAPI(baseURL).ListJobs(cmd.Context(), ledgerName, filter, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
	jobsCmd.Flags().String("ledger", "delivery", "Ledger: delivery|failure")
	jobsCmd.Flags().String("filter", "", "CEL filter (server-side), e.g. 'phase == \"pending\"'")
	jobsCmd.Flags().Int("limit", 0, "Stop after N jobs (0 = all)")
	return jobsCmd
}
