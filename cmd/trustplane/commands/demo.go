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
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// demoScenario is one request the demo walks through.
type demoScenario struct {
	Title   string                `json:"title"`
	Request authorization.Request `json:"request"`
}

func demoScenarios(trustDomain string) []demoScenario {
	workload := func(name string) string {
		return "spiffe://" + trustDomain + "/ns/production/sa/" + name
	}
	agent := "spiffe://" + trustDomain + "/ns/ai-platform/agent/tars-policy-agent"

	return []demoScenario{
		{"checkout reads inventory", authorization.Request{
			Subject: workload("checkout-service"), Resource: "inventory-service", Action: "GET"}},
		{"checkout writes inventory", authorization.Request{
			Subject: workload("checkout-service"), Resource: "inventory-service", Action: "DELETE"}},
		{"payment reads inventory", authorization.Request{
			Subject: workload("payment-service"), Resource: "inventory-service", Action: "GET"}},
		{"agent routes within budget", authorization.Request{
			Subject: agent, Resource: "tars-router", Action: "route",
			Context: map[string]any{"daily_tokens_used": 1200, "target_model": "llama-3"}}},
		{"agent over its daily budget", authorization.Request{
			Subject: agent, Resource: "tars-router", Action: "route",
			Context: map[string]any{"daily_tokens_used": 25000}}},
		{"agent asks for a high-risk model", authorization.Request{
			Subject: agent, Resource: "tars-router", Action: "route",
			Context: map[string]any{"target_model": "gpt-4o"}}},
		{"admin with a fresh MFA session", authorization.Request{
			Subject: "admin@example.com", Resource: "trustplane-api/policies", Action: "DELETE",
			Context: map[string]any{"mfa_verified": true, "session_age_minutes": 5}}},
		{"admin without MFA", authorization.Request{
			Subject: "admin@example.com", Resource: "trustplane-api/policies", Action: "DELETE"}},
		{"unregistered workload", authorization.Request{
			Subject: workload("shadow-service"), Resource: "inventory-service", Action: "GET"}},
	}
}

type demoResult struct {
	Title    string          `json:"title"`
	Decision schema.Decision `json:"decision"`
}

func demoCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "demo",
		Summary: "Seed sample data and walk through example decisions",
		Description: `Seed the built-in demo identities and policies (as --demo does for other
commands), then evaluate a fixed set of requests that exercise allows,
explicit denies, trust floors, and the implicit deny.

The decisions are recorded in the audit trail like any others.`,
		Usage:  "trustplane demo [flags]",
		Params: func() any { return &params },
		Run: func(args []string) error {
			params.Demo = true
			ctx := context.Background()
			plane, _, err := params.open(ctx, "demo")
			if err != nil {
				return err
			}
			defer plane.Close()

			var results []demoResult
			for _, scenario := range demoScenarios(plane.Identities.TrustDomain()) {
				decision, err := plane.Engine.Evaluate(ctx, scenario.Request)
				if err != nil {
					return fmt.Errorf("%s: %w", scenario.Title, err)
				}
				results = append(results, demoResult{Title: scenario.Title, Decision: decision})
			}
			if done, err := params.EmitJSON(out, results); done {
				return err
			}

			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			for _, result := range results {
				verdict := "DENY"
				if result.Decision.Allowed {
					verdict = "ALLOW"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", verdict, result.Title, result.Decision.Reason)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			stats := plane.Stats("")
			fmt.Fprintf(out, "\n%d identities, %d active policies, %d audit events (%d allow, %d deny)\n",
				stats.Identities, stats.ActivePolicies, stats.Audit.Total, stats.Audit.AllowCount, stats.Audit.DenyCount)
			return nil
		},
	}
}
