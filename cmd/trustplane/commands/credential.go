// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/controlplane"
	"github.com/bureau-foundation/trustplane/lib/credential"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

type issueParams struct {
	planeParams
	cli.JSONOutput
	Identity string        `json:"identity" flag:"identity,i" desc:"structured identifier, identity ID, or contact to issue to"`
	TTL      time.Duration `json:"ttl"      flag:"ttl"        desc:"requested lifetime; clamped to the kind's ceiling (default: configured default_ttl)"`
}

func (params issueParams) resolve(plane *controlplane.Plane) (schema.Identity, error) {
	if err := requireFlag("identity", params.Identity); err != nil {
		return schema.Identity{}, err
	}
	subject, ok := plane.Identities.Resolve(params.Identity)
	if !ok {
		return schema.Identity{}, fmt.Errorf("identity %q: %w", params.Identity, schema.ErrNotFound)
	}
	return subject, nil
}

func tokenCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Issue and verify bearer tokens",
		Description: `Issue HS256 bearer tokens to registered identities and verify them.

Tokens carry the identity's name, kind, namespace, and trust level. The
signing key is derived from the keyring under paths.keys, so tokens
verify across restarts for as long as the keyring is kept.`,
		Subcommands: []*cli.Command{
			tokenIssueCommand(out),
			tokenVerifyCommand(out),
		},
	}
}

func tokenIssueCommand(out io.Writer) *cli.Command {
	var params issueParams

	return &cli.Command{
		Name:    "issue",
		Summary: "Issue a token to an identity",
		Usage:   "trustplane token issue --identity <subject> [--ttl <duration>] [flags]",
		Examples: []cli.Example{
			{
				Description: "Issue a 30 minute token to a demo agent",
				Command:     "trustplane token issue --demo -i spiffe://prod.example.com/ns/ai-platform/agent/tars-policy-agent --ttl 30m",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			ctx := context.Background()
			plane, _, err := params.open(ctx, "token/issue")
			if err != nil {
				return err
			}
			defer plane.Close()

			subject, err := params.resolve(plane)
			if err != nil {
				return err
			}
			token, err := plane.IssueToken(ctx, subject.ID, params.TTL)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, token); done {
				return err
			}
			fmt.Fprintln(out, token.Raw)
			if token.Clamped {
				fmt.Fprintf(os.Stderr, "note: lifetime clamped to %s for %s identities\n", token.TTL, subject.Kind)
			}
			return nil
		},
	}
}

func tokenVerifyCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify a token and print its claims",
		Description: `Verify a token's signature, issuer, audience, and expiry. The token is
read from the first argument, or from stdin when the argument is "-"
or absent.`,
		Usage:  "trustplane token verify [<token> | -] [flags]",
		Params: func() any { return &params },
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Validation("expected at most one token argument, got %d", len(args))
			}
			raw := "-"
			if len(args) == 1 {
				raw = args[0]
			}
			if raw == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading token from stdin: %w", err)
				}
				raw = strings.TrimSpace(string(data))
			}

			plane, _, err := params.open(context.Background(), "token/verify")
			if err != nil {
				return err
			}
			defer plane.Close()

			claims, err := plane.Credentials.VerifyToken(raw)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, claims); done {
				return err
			}
			fmt.Fprintf(out, "valid token for %s (%s)\n", claims.Name, claims.Subject)
			fmt.Fprintf(out, "  kind %s, namespace %s, trust %s\n", claims.Kind, claims.Namespace, claims.TrustLevel)
			fmt.Fprintf(out, "  expires %s\n", time.Unix(claims.ExpiresAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func documentCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "document",
		Summary: "Issue and verify identity documents",
		Description: `Issue Ed25519-signed identity documents to workloads, agents, and
service accounts, and verify them. A document embeds the trust bundle it
was signed under, so it can be checked offline against that bundle.`,
		Subcommands: []*cli.Command{
			documentIssueCommand(out),
			documentVerifyCommand(out),
		},
	}
}

func documentIssueCommand(out io.Writer) *cli.Command {
	var params issueParams

	return &cli.Command{
		Name:    "issue",
		Summary: "Issue a document to an identity",
		Usage:   "trustplane document issue --identity <subject> [--ttl <duration>] [flags]",
		Examples: []cli.Example{
			{
				Description: "Issue a document to a demo workload and save it",
				Command:     "trustplane document issue --demo -i spiffe://prod.example.com/ns/production/sa/payment-service > payment.json",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			ctx := context.Background()
			plane, _, err := params.open(ctx, "document/issue")
			if err != nil {
				return err
			}
			defer plane.Close()

			subject, err := params.resolve(plane)
			if err != nil {
				return err
			}
			document, err := plane.IssueDocument(ctx, subject.ID, params.TTL)
			if err != nil {
				return err
			}
			// Documents are structured; they are always written as JSON.
			return cli.WriteJSON(out, document)
		},
	}
}

func documentVerifyCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
	}

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify a document issued by this plane",
		Description: `Verify a JSON document against this plane's current trust bundle and
check that its subject belongs to the configured trust domain. The
document is read from the file named by the first argument, or from
stdin when the argument is "-" or absent.`,
		Usage:  "trustplane document verify [<file> | -] [flags]",
		Params: func() any { return &params },
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Validation("expected at most one file argument, got %d", len(args))
			}
			var input io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				input = file
			}
			var document credential.Document
			if err := json.NewDecoder(input).Decode(&document); err != nil {
				return cli.Validation("decoding document: %v", err)
			}

			plane, _, err := params.open(context.Background(), "document/verify")
			if err != nil {
				return err
			}
			defer plane.Close()

			if err := plane.Credentials.VerifyDocument(document); err != nil {
				return err
			}
			if err := plane.Identities.VerifyTrustDomain(document.Subject); err != nil {
				return err
			}
			fmt.Fprintf(out, "valid document for %s\n", document.Subject)
			fmt.Fprintf(out, "  serial %s, key %s, expires %s\n",
				document.Serial, document.Bundle.KeyID, document.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
