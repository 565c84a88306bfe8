// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/authorization"
)

// requestParams describe one access request.
type requestParams struct {
	planeParams
	cli.JSONOutput
	Subject   string   `json:"subject"   flag:"subject,s"   desc:"structured identifier, identity ID, or contact of the caller"`
	Resource  string   `json:"resource"  flag:"resource,r"  desc:"resource being accessed"`
	Action    string   `json:"action"    flag:"action,a"    desc:"action being performed"`
	Namespace string   `json:"namespace" flag:"namespace,n" desc:"evaluation namespace (default: the subject's own)"`
	Context   []string `json:"context"   flag:"context"     desc:"request attribute as key=value; JSON values keep their type (repeatable)"`
}

func (params requestParams) request() (authorization.Request, error) {
	for _, required := range []struct{ name, value string }{
		{"subject", params.Subject},
		{"resource", params.Resource},
		{"action", params.Action},
	} {
		if err := requireFlag(required.name, required.value); err != nil {
			return authorization.Request{}, err
		}
	}
	requestContext, err := parseContext(params.Context)
	if err != nil {
		return authorization.Request{}, err
	}
	return authorization.Request{
		Subject:   params.Subject,
		Resource:  params.Resource,
		Action:    params.Action,
		Namespace: params.Namespace,
		Context:   requestContext,
	}, nil
}

func evaluateCommand(out io.Writer) *cli.Command {
	var params requestParams

	return &cli.Command{
		Name:    "evaluate",
		Summary: "Decide an access request",
		Description: `Evaluate one access request against the active policies and record the
decision in the audit trail.

Policies in the request namespace and in the global namespace are
considered in creation order; the first one that matches the subject,
resource, and action decides. Everything else is denied.

The exit status is 0 for an allow and 1 for a deny.`,
		Usage: "trustplane evaluate --subject <subject> --resource <resource> --action <action> [flags]",
		Examples: []cli.Example{
			{
				Description: "Check a demo workload's read access",
				Command:     "trustplane evaluate --demo -s spiffe://prod.example.com/ns/production/sa/checkout-service -r inventory-service -a GET",
			},
			{
				Description: "Pass request attributes to deny rules",
				Command:     "trustplane evaluate --demo -s admin@example.com -r trustplane-api/policies -a DELETE --context mfa_verified=true --context session_age_minutes=5",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			request, err := params.request()
			if err != nil {
				return err
			}
			ctx := context.Background()
			plane, _, err := params.open(ctx, "evaluate")
			if err != nil {
				return err
			}
			defer plane.Close()

			decision, err := plane.Engine.Evaluate(ctx, request)
			if err != nil {
				return err
			}

			done, err := params.EmitJSON(out, decision)
			if err != nil {
				return err
			}
			if !done {
				verdict := "DENY"
				if decision.Allowed {
					verdict = "ALLOW"
				}
				fmt.Fprintf(out, "%s  %s\n", verdict, decision.Reason)
				tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "  decision\t%d\n", decision.ID)
				fmt.Fprintf(tw, "  namespace\t%s\n", decision.Namespace)
				if decision.PolicyName != "" {
					fmt.Fprintf(tw, "  policy\t%s (%s)\n", decision.PolicyName, decision.PolicyID)
				}
				fmt.Fprintf(tw, "  trust\t%s\n", decision.TrustLevel)
				fmt.Fprintf(tw, "  duration\t%s\n", decision.Duration)
				tw.Flush()
			}

			if !decision.Allowed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func explainCommand(out io.Writer) *cli.Command {
	var params requestParams

	return &cli.Command{
		Name:    "explain",
		Summary: "Show how each policy treats an access request",
		Description: `Evaluate an access request and report every candidate policy's part
in the outcome: which pattern failed to match, whose trust floor was
not met, which deny rule fired, and which policies were never reached.

Explain does not record a decision in the audit trail.`,
		Usage: "trustplane explain --subject <subject> --resource <resource> --action <action> [flags]",
		Examples: []cli.Example{
			{
				Description: "See why an agent was denied",
				Command:     "trustplane explain --demo -s spiffe://prod.example.com/ns/ai-platform/agent/anomaly-detector -r tars-router -a route --context target_model=gpt-4o",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			request, err := params.request()
			if err != nil {
				return err
			}
			ctx := context.Background()
			plane, _, err := params.open(ctx, "explain")
			if err != nil {
				return err
			}
			defer plane.Close()

			trace, err := plane.Engine.Explain(ctx, request)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, trace); done {
				return err
			}
			writeTrace(out, trace)
			return nil
		},
	}
}

func writeTrace(out io.Writer, trace authorization.Trace) {
	verdict := "DENY"
	if trace.Allowed {
		verdict = "ALLOW"
	}
	fmt.Fprintf(out, "%s  %s\n", verdict, trace.Reason)

	switch {
	case trace.Identity == nil:
		fmt.Fprintf(out, "\nsubject %q is not registered\n", trace.Request.Subject)
		return
	case !trace.Resolved:
		fmt.Fprintf(out, "\nidentity %s (%s) is deactivated\n", trace.Identity.Name, trace.Identity.ID)
		return
	}
	fmt.Fprintf(out, "\nidentity %s  kind=%s  namespace=%s  trust=%s\n",
		trace.Identity.Name, trace.Identity.Kind, trace.Identity.Namespace, trace.Identity.TrustLevel)
	fmt.Fprintf(out, "evaluated in namespace %s\n\n", trace.Namespace)

	if len(trace.Steps) == 0 {
		fmt.Fprintln(out, "no active policies apply")
		return
	}
	tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tPOLICY\tRESULT\tDETAIL")
	for index, step := range trace.Steps {
		detail := step.Detail
		if step.DenyRule != "" {
			detail = step.DenyRule
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", index+1, step.PolicyName, step.Result, detail)
	}
	tw.Flush()
}
