package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// isInteractive reports whether stdout is an attached terminal rather than
// a pipe or redirected file — the same check the teacher uses to decide
// whether to emit progress output meant for a human.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printResult renders v as pretty JSON when --json is set or stdout isn't
// a terminal (scripts piping output want stable, parseable JSON even
// without asking for it explicitly), otherwise via Go's default %+v
// formatting for a human reading it directly.
func printResult(v any) error {
	if !flagJSON && isInteractive() {
		fmt.Printf("%+v\n", v)
		return nil
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("pbsync: cmd: marshaling result: %w", err)
	}

	fmt.Println(string(b))

	return nil
}
