// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"strings"
	"testing"

	"github.com/bureau-foundation/trustplane/lib/authorization"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/policy"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

func TestDemoPoliciesValidate(t *testing.T) {
	for _, spec := range DemoBundle("example.test").Policies {
		report := policy.Validate(spec.Draft.Policy())
		if !report.Valid {
			t.Errorf("%s: invalid: %v", spec.Name, report.Errors)
		}
	}
}

func TestSeedDemoDecisions(t *testing.T) {
	plane := openPlane(t, testConfig(t), clock.Fake(epoch))
	ctx := context.Background()
	if _, err := plane.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	const (
		checkout  = "spiffe://example.test/ns/production/sa/checkout-service"
		payment   = "spiffe://example.test/ns/production/sa/payment-service"
		tarsAgent = "spiffe://example.test/ns/ai-platform/agent/tars-policy-agent"
	)

	tests := []struct {
		name       string
		request    authorization.Request
		allowed    bool
		reasonPart string
	}{
		{
			name:       "checkout reads inventory",
			request:    authorization.Request{Subject: checkout, Resource: "inventory-service", Action: "GET"},
			allowed:    true,
			reasonPart: "checkout-reads-inventory",
		},
		{
			name:       "checkout cannot write inventory",
			request:    authorization.Request{Subject: checkout, Resource: "inventory-service", Action: "DELETE"},
			reasonPart: "implicit deny",
		},
		{
			name:       "payment is not covered",
			request:    authorization.Request{Subject: payment, Resource: "inventory-service", Action: "GET"},
			reasonPart: "implicit deny",
		},
		{
			name: "agent routes within budget",
			request: authorization.Request{Subject: tarsAgent, Resource: "tars-router", Action: "route",
				Context: map[string]any{"daily_tokens_used": 1200, "target_model": "llama-3"}},
			allowed:    true,
			reasonPart: "tars-agent-llm-routing",
		},
		{
			name: "agent over budget",
			request: authorization.Request{Subject: tarsAgent, Resource: "tars-router", Action: "route",
				Context: map[string]any{"daily_tokens_used": 25000.0}},
			reasonPart: "explicit deny",
		},
		{
			name: "medium-trust agent on a high-risk model",
			request: authorization.Request{Subject: tarsAgent, Resource: "tars-router", Action: "route",
				Context: map[string]any{"target_model": "gpt-4o"}},
			reasonPart: "explicit deny",
		},
		{
			name: "admin with fresh MFA session",
			request: authorization.Request{Subject: "admin@example.com", Resource: "trustplane-api/policies", Action: "DELETE",
				Context: map[string]any{"mfa_verified": true, "session_age_minutes": 5}},
			allowed:    true,
			reasonPart: "admin-full-access",
		},
		{
			name: "admin without MFA",
			request: authorization.Request{Subject: "admin@example.com", Resource: "trustplane-api/policies", Action: "DELETE",
				Context: map[string]any{"session_age_minutes": 5}},
			reasonPart: "explicit deny",
		},
		{
			name: "admin with a stale session",
			request: authorization.Request{Subject: "admin@example.com", Resource: "trustplane-api/identities", Action: "GET",
				Context: map[string]any{"mfa_verified": true, "session_age_minutes": 90}},
			reasonPart: "explicit deny",
		},
		{
			name: "medium-trust human on the admin API",
			request: authorization.Request{Subject: "alice.chen@example.com", Resource: "trustplane-api/policies", Action: "GET",
				Context: map[string]any{"mfa_verified": true}},
			reasonPart: "implicit deny",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			decision, err := plane.Engine.Evaluate(ctx, test.request)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if decision.Allowed != test.allowed {
				t.Errorf("allowed = %v (%s), want %v", decision.Allowed, decision.Reason, test.allowed)
			}
			if !strings.Contains(decision.Reason, test.reasonPart) {
				t.Errorf("reason = %q, want it to mention %q", decision.Reason, test.reasonPart)
			}
		})
	}
}

func TestSeedDemoRecordsActor(t *testing.T) {
	plane := openPlane(t, testConfig(t), clock.Fake(epoch))
	result, err := plane.SeedDemo(context.Background())
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	for _, created := range result.Policies {
		if created.CreatedBy != DemoActor {
			t.Errorf("%s CreatedBy = %q, want %q", created.Name, created.CreatedBy, DemoActor)
		}
		if created.Status != schema.PolicyActive {
			t.Errorf("%s status = %s, want active", created.Name, created.Status)
		}
	}
	for event := range plane.Trail.Recent(0) {
		if event.Actor != DemoActor {
			t.Errorf("event %d (%s) actor = %q, want %q", event.Sequence, event.Action, event.Actor, DemoActor)
		}
	}
}
