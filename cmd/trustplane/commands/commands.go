// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the trustplane CLI command tree.
//
// Identities and policies live in memory, so every command that needs
// them starts a fresh control plane: the configuration file is loaded,
// its bundles are applied, then any --bundle files, then the demo seed
// when --demo is given. The credential keyring and (with
// audit.persist) the audit trail are the state shared between runs.
package commands

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/version"
)

// Root builds and returns the complete CLI command tree. Command
// results are written to out; logs and notes go to stderr.
func Root(out io.Writer) *cli.Command {
	return &cli.Command{
		Name: "trustplane",
		Description: `trustplane: identity and policy control plane.

Issue short-lived credentials to workloads, humans, and AI agents, and
decide per request whether an identity may perform an action on a
resource. Every decision is recorded in a hash-chained audit trail.

Configuration is read from the file named by --config or by the
TRUSTPLANE_CONFIG environment variable.`,
		Subcommands: []*cli.Command{
			evaluateCommand(out),
			explainCommand(out),
			tokenCommand(out),
			documentCommand(out),
			identityCommand(out),
			policyCommand(out),
			auditCommand(out),
			keygenCommand(out),
			demoCommand(out),
			versionCommand(out),
		},
		Examples: []cli.Example{
			{
				Description: "Walk through the demo decisions",
				Command:     "trustplane demo --config trustplane.yaml",
			},
			{
				Description: "Explain a decision against your own bundle",
				Command:     "trustplane explain -b policies.yaml -s spiffe://prod.example.com/ns/shop/sa/cart -r orders -a POST",
			},
		},
	}
}

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Binary  string `json:"binary,omitempty"`
	BLAKE3  string `json:"blake3,omitempty"`
}

func versionCommand(out io.Writer) *cli.Command {
	var params struct {
		cli.JSONOutput
		Digest bool `json:"digest" flag:"digest" desc:"also print the BLAKE3 digest of the running binary"`
	}

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			info := versionInfo{Version: version.Short(), Commit: version.Commit()}
			if params.Digest {
				hash, path, err := version.SelfDigest()
				if err != nil {
					return err
				}
				info.Binary, info.BLAKE3 = path, hash
			}
			if done, err := params.EmitJSON(out, info); done {
				return err
			}

			fmt.Fprintf(out, "trustplane %s\n", version.Full())
			if params.Digest {
				fmt.Fprintf(out, "  Binary: %s\n  BLAKE3: %s\n", info.Binary, info.BLAKE3)
			}
			return nil
		},
	}
}
