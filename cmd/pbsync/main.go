// Command pbsync is a demo/ops CLI driving a Client from the shell: useful
// for poking at a local cache during development and for scripted smoke
// checks against a server, without writing a throwaway Go program each time
// (SPEC_FULL.md section 2, "Demo/ops CLI").
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
