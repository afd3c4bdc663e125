package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "run the TTL-based cleanup sweep over records, cached responses, and file blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			res, err := cc.Client.RunMaintenance(cmd.Context())
			if err != nil {
				return fmt.Errorf("pbsync: cmd: maintenance: %w", err)
			}

			if !flagJSON && isInteractive() {
				fmt.Printf("swept %s rows: %s records, %s responses, %s files\n",
					humanize.Comma(int64(res.Total())),
					humanize.Comma(int64(res.DeletedRecords)),
					humanize.Comma(int64(res.DeletedResponses)),
					humanize.Comma(int64(res.DeletedFiles)))

				return nil
			}

			return printResult(res)
		},
	}
}
