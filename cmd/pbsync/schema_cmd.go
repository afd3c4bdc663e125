package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newSchemaCmd groups schema-registry operations.
func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "inspect or load collection schemas",
	}

	cmd.AddCommand(newSchemaPutCmd())
	cmd.AddCommand(newSchemaShowCmd())

	return cmd
}

func newSchemaPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file.json>",
		Short: "register a collection schema from its wire JSON shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("pbsync: cmd: reading %s: %w", args[0], err)
			}

			cc := mustCLIContext(cmd.Context())

			return cc.Client.PutSchema(data)
		},
	}
}

func newSchemaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <service>",
		Short: "print the cached schema for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			coll := cc.Client.Schema(args[0])
			if coll == nil {
				return fmt.Errorf("pbsync: cmd: no cached schema for %q", args[0])
			}

			return printResult(coll)
		},
	}
}
