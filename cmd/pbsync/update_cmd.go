package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "update <service> <id> <body.json>",
		Short: "partially update a record through the five-way write routing table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			p, err := resolvePolicyFlag(policyName)
			if err != nil {
				return err
			}

			body, err := decodeBodyArg(args[2])
			if err != nil {
				return err
			}

			rec, err := cc.Client.Update(cmd.Context(), p, args[0], args[1], body, nil)
			if err != nil {
				return fmt.Errorf("pbsync: cmd: update %s/%s: %w", args[0], args[1], err)
			}

			return printResult(rec)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "override the default policy for this call")

	return cmd
}
