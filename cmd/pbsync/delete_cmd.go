package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "delete <service> <id>",
		Short: "delete a record through the five-way delete routing table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			p, err := resolvePolicyFlag(policyName)
			if err != nil {
				return err
			}

			if err := cc.Client.Delete(cmd.Context(), p, args[0], args[1]); err != nil {
				return fmt.Errorf("pbsync: cmd: delete %s/%s: %w", args[0], args[1], err)
			}

			fmt.Printf("deleted %s/%s\n", args[0], args[1])

			return nil
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "override the default policy for this call")

	return cmd
}
