package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "create <service> <body.json>",
		Short: "create a record through the five-way write routing table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			p, err := resolvePolicyFlag(policyName)
			if err != nil {
				return err
			}

			body, err := decodeBodyArg(args[1])
			if err != nil {
				return err
			}

			rec, err := cc.Client.Create(cmd.Context(), p, args[0], body, nil)
			if err != nil {
				return fmt.Errorf("pbsync: cmd: create %s: %w", args[0], err)
			}

			return printResult(rec)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "override the default policy for this call")

	return cmd
}

// decodeBodyArg accepts either a literal JSON object or an @-prefixed path
// to a JSON file, matching the common curl/jq convention for request
// bodies passed on a command line.
func decodeBodyArg(arg string) (map[string]any, error) {
	raw, err := readArgBytes(arg)
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("pbsync: cmd: decoding body: %w", err)
	}

	return body, nil
}
