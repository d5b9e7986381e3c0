// Package main provides the entry point for the asgiship CLI.
package main

import (
	"errors"
	"os"
)

func main() {
	err := Execute()
	if err == nil {
		return
	}

	// a launched server's exit code passes through unchanged
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	os.Exit(1)
}
