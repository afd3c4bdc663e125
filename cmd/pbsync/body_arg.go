package main

import (
	"fmt"
	"os"
	"strings"
)

// readArgBytes returns arg's literal bytes, unless it begins with "@" in
// which case the remainder is treated as a file path to read instead.
func readArgBytes(arg string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(rest)
		if err != nil {
			return nil, fmt.Errorf("pbsync: cmd: reading %s: %w", rest, err)
		}

		return data, nil
	}

	return []byte(arg), nil
}
