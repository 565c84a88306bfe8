// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// trustplane is the command-line front end of the identity and policy
// control plane. See "trustplane --help".
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/cmd/trustplane/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (evaluate, policy
		// validate) return an exit code without a message.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	return commands.Root(os.Stdout).Execute(os.Args[1:])
}
