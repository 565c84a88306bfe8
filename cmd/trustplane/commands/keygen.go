// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/sealed"
)

func keygenCommand(out io.Writer) *cli.Command {
	var params struct {
		cli.JSONOutput
		Output string `json:"output" flag:"output,o" desc:"file to write the age identity to (mode 0600; must not exist)"`
	}

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for sealing the keyring",
		Description: `Generate an x25519 age keypair. The identity (AGE-SECRET-KEY-1...) is
written to --output and the recipient (age1...) is printed.

Put the recipient in credentials.seal_recipients and the identity file
path in credentials.seal_identity_file to keep the credential keyring
encrypted at rest.`,
		Usage: "trustplane keygen --output <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Create the sealing identity",
				Command:     "trustplane keygen -o ~/.config/trustplane/seal.key",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			if err := requireFlag("output", params.Output); err != nil {
				return err
			}
			if _, err := os.Stat(params.Output); err == nil {
				return cli.Validation("%s already exists; refusing to overwrite a key", params.Output)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			contents := append(append([]byte(nil), keypair.PrivateKey.Bytes()...), '\n')
			if err := os.WriteFile(params.Output, contents, 0600); err != nil {
				clear(contents)
				return fmt.Errorf("writing identity: %w", err)
			}
			clear(contents)

			if done, err := params.EmitJSON(out, map[string]string{
				"recipient":     keypair.PublicKey,
				"identity_file": params.Output,
			}); done {
				return err
			}
			fmt.Fprintln(out, keypair.PublicKey)
			return nil
		},
	}
}
