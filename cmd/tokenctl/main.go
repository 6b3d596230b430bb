// Command tokenctl issues and verifies tutogate bearer tokens. It signs with
// the same secret the server verifies with, so it is meant for operators and
// local testing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
