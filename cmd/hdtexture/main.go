package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// errFilesFailed signals that the batch completed and wrote its manifest but
// at least one file recorded an error result.
var errFilesFailed = errors.New("one or more files failed to process")

// exitCode maps command errors to the documented process exit codes: 2 when
// individual files failed, 1 for fatal precondition or run-level failures.
func exitCode(err error) int {
	if errors.Is(err, errFilesFailed) {
		return 2
	}
	return 1
}
