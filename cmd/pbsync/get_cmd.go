package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterway/pbsync"
)

func newGetCmd() *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "get <service> <id>",
		Short: "fetch a single record through the five-way read routing table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			p, err := resolvePolicyFlag(policyName)
			if err != nil {
				return err
			}

			rec, err := cc.Client.Fetch(cmd.Context(), p, args[0], args[1])
			if err != nil {
				return fmt.Errorf("pbsync: cmd: get %s/%s: %w", args[0], args[1], err)
			}

			return printResult(rec)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "override the default policy for this call")

	return cmd
}

// resolvePolicyFlag parses an optional per-command --policy override,
// falling back to the root --policy flag when unset.
func resolvePolicyFlag(name string) (pbsync.Policy, error) {
	if name == "" {
		name = flagPolicy
	}

	return pbsync.ParsePolicy(name)
}
