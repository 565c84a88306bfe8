// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/identity"
	"github.com/bureau-foundation/trustplane/lib/policy"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

func policyCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "Review and list policies",
		Subcommands: []*cli.Command{
			policyValidateCommand(out),
			policyListCommand(out),
		},
	}
}

// validatedPolicy pairs a policy name with its report for output.
type validatedPolicy struct {
	File   string                  `json:"file"`
	Name   string                  `json:"name"`
	Report policy.ValidationReport `json:"report"`
}

func policyValidateCommand(out io.Writer) *cli.Command {
	var params struct {
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "validate",
		Summary: "Statically review the policies in bundle files",
		Description: `Check every policy in the given bundle files without loading them:
names, namespaces, patterns, trust floors, deny rules, and policy
content. Warnings flag policies that are legal but probably too broad.

The exit status is 1 when any policy has errors.`,
		Usage: "trustplane policy validate <bundle>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Review a bundle before deploying it",
				Command:     "trustplane policy validate policies/production.yaml",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("at least one bundle file is required")
			}

			var results []validatedPolicy
			for _, path := range args {
				bundle, err := policy.LoadBundle(path)
				if err != nil {
					return err
				}
				for _, spec := range bundle.Policies {
					results = append(results, validatedPolicy{
						File:   path,
						Name:   spec.Name,
						Report: policy.Validate(spec.Draft.Policy()),
					})
				}
			}

			invalid := 0
			for _, result := range results {
				if !result.Report.Valid {
					invalid++
				}
			}

			done, err := params.EmitJSON(out, results)
			if err != nil {
				return err
			}
			if !done {
				for _, result := range results {
					status := "ok"
					if !result.Report.Valid {
						status = "INVALID"
					}
					fmt.Fprintf(out, "%s: %s  %s (coverage %.1f)\n", result.File, result.Name, status, result.Report.Coverage)
					for _, message := range result.Report.Errors {
						fmt.Fprintf(out, "  error: %s\n", message)
					}
					for _, message := range result.Report.Warnings {
						fmt.Fprintf(out, "  warning: %s\n", message)
					}
				}
				fmt.Fprintf(out, "%d policies, %d invalid\n", len(results), invalid)
			}

			if invalid > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func policyListCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
		Namespace string `json:"namespace" flag:"namespace,n" desc:"only policies stored in this namespace"`
	}

	return &cli.Command{
		Name:    "list",
		Summary: "List loaded policies in evaluation order",
		Usage:   "trustplane policy list [--namespace <ns>] [flags]",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			plane, _, err := params.open(context.Background(), "policy/list")
			if err != nil {
				return err
			}
			defer plane.Close()

			var policies []schema.Policy
			for stored := range plane.Policies.List(params.Namespace) {
				policies = append(policies, stored)
			}
			if done, err := params.EmitJSON(out, policies); done {
				return err
			}

			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tNAMESPACE\tSTATUS\tMODEL\tMIN TRUST\tACTIONS")
			for _, stored := range policies {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					stored.Name, stored.Namespace, stored.Status, stored.AccessModel,
					stored.MinTrust, strings.Join(stored.Actions, ","))
			}
			return tw.Flush()
		},
	}
}

func identityCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
		Kind      string `json:"kind"      flag:"kind,k"      desc:"only identities of this kind"`
		Namespace string `json:"namespace" flag:"namespace,n" desc:"only identities in this namespace"`
	}

	list := &cli.Command{
		Name:    "list",
		Summary: "List loaded identities",
		Usage:   "trustplane identity list [--kind <kind>] [--namespace <ns>] [flags]",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			filter := identity.Filter{Namespace: params.Namespace}
			if params.Kind != "" {
				kind, err := schema.ParseIdentityKind(params.Kind)
				if err != nil {
					return cli.Validation("--kind: %v", err)
				}
				filter.Kind = kind
			}

			plane, _, err := params.open(context.Background(), "identity/list")
			if err != nil {
				return err
			}
			defer plane.Close()

			var identities []schema.Identity
			for registered := range plane.Identities.List(filter) {
				identities = append(identities, registered)
			}
			if done, err := params.EmitJSON(out, identities); done {
				return err
			}

			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tNAMESPACE\tTRUST\tSUBJECT")
			for _, registered := range identities {
				subject := registered.StructuredID
				if subject == "" {
					subject = registered.Contact
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					registered.Name, registered.Kind, registered.Namespace, registered.TrustLevel, subject)
			}
			return tw.Flush()
		},
	}

	return &cli.Command{
		Name:        "identity",
		Summary:     "Inspect registered identities",
		Subcommands: []*cli.Command{list},
	}
}
