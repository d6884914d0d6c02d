package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/igapp/aurora/internal/config"
)

func main() {
	// Load .env file if it exists; variables already in the environment win
	config.LoadDotEnv()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
