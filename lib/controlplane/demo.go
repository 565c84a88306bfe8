// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"fmt"
	"strings"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/policy"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// DemoActor is the audit actor of everything SeedDemo creates.
const DemoActor = "trustplane-system"

// SeedDemo applies DemoBundle for the plane's trust domain.
func (p *Plane) SeedDemo(ctx context.Context) (ApplyResult, error) {
	result, err := p.Apply(audit.WithActor(ctx, DemoActor), DemoBundle(p.Identities.TrustDomain()))
	if err != nil {
		return result, fmt.Errorf("seeding demo data: %w", err)
	}
	p.logger.Info("demo data seeded",
		"identities", len(result.Identities),
		"policies", len(result.Policies),
	)
	return result, nil
}

// DemoBundle returns sample identities and three active policies:
// checkout reads inventory, AI agents route through an LLM router
// under a token budget, and an MFA-gated administrator.
func DemoBundle(trustDomain string) *policy.Bundle {
	trust := func(level schema.TrustLevel) *schema.TrustLevel { return &level }
	checkout := "spiffe://" + trustDomain + "/ns/production/sa/checkout-service"
	agents := "spiffe://" + trustDomain + "/ns/ai-platform/agent/*"

	return &policy.Bundle{
		Identities: []policy.IdentitySpec{
			{Name: "checkout-service", Kind: schema.KindWorkload, Namespace: "production", TrustLevel: trust(schema.TrustHigh)},
			{Name: "payment-service", Kind: schema.KindWorkload, Namespace: "production", TrustLevel: trust(schema.TrustHigh)},
			{Name: "inventory-service", Kind: schema.KindWorkload, Namespace: "production", TrustLevel: trust(schema.TrustHigh)},
			{Name: "auth-service", Kind: schema.KindWorkload, Namespace: "platform", TrustLevel: trust(schema.TrustHigh)},
			{Name: "tars-policy-agent", Kind: schema.KindAIAgent, Namespace: "ai-platform", TrustLevel: trust(schema.TrustMedium)},
			{Name: "anomaly-detector", Kind: schema.KindAIAgent, Namespace: "ai-platform", TrustLevel: trust(schema.TrustMedium)},
			{
				Name: "alice.chen", Kind: schema.KindHuman, Namespace: "platform",
				Contact: "alice.chen@example.com", TrustLevel: trust(schema.TrustMedium),
				Labels: map[string]string{"team": "platform"},
			},
			{
				Name: "bob.kumar", Kind: schema.KindHuman, Namespace: "production",
				Contact: "bob.kumar@example.com", TrustLevel: trust(schema.TrustMedium),
				Labels: map[string]string{"team": "sre"},
			},
			{
				Name: "admin", Kind: schema.KindHuman, Namespace: "system",
				Contact: "admin@example.com", TrustLevel: trust(schema.TrustCritical),
				Labels: map[string]string{"role": "platform-admin"},
			},
		},
		Policies: []policy.PolicySpec{
			{
				Draft: policy.Draft{
					Name:        "checkout-reads-inventory",
					Description: "Checkout may read inventory data; writes fall through to the implicit deny",
					Namespace:   "production",
					AccessModel: schema.AccessZeroTrust,
					Language:    schema.LanguageRego,
					Content:     rego(checkoutRego, trustDomain),
					Subjects:    []string{checkout},
					Resources:   []string{"inventory-service"},
					Actions:     []string{"GET", "LIST"},
					MinTrust:    schema.TrustHigh,
					Tags:        []string{"production", "e-commerce"},
				},
				Status: schema.PolicyActive,
			},
			{
				Draft: policy.Draft{
					Name:        "tars-agent-llm-routing",
					Description: "AI agents may route through the LLM router within a daily token budget",
					Namespace:   "ai-platform",
					AccessModel: schema.AccessABAC,
					Language:    schema.LanguageRego,
					Content:     rego(routingRego, trustDomain),
					Subjects:    []string{agents},
					Resources:   []string{"tars-router"},
					Actions:     []string{"route"},
					MinTrust:    schema.TrustMedium,
					DenyRules: []schema.DenyRule{
						{Expression: "(context.daily_tokens_used ?? 0) > 10000"},
						{Expression: `context.target_model in ["gpt-4o", "claude-3-opus"] && trust_level < 3`},
					},
					Tags: []string{"ai-governance", "tars"},
				},
				Status: schema.PolicyActive,
			},
			{
				Draft: policy.Draft{
					Name:        "admin-full-access",
					Description: "The platform administrator has full access to the management API with a fresh MFA session",
					Namespace:   schema.GlobalNamespace,
					AccessModel: schema.AccessRBAC,
					Language:    schema.LanguageRego,
					Content:     rego(adminRego, trustDomain),
					Subjects:    []string{"admin@example.com"},
					Resources:   []string{"trustplane-api/*"},
					Actions:     []string{"*"},
					MinTrust:    schema.TrustCritical,
					DenyRules: []schema.DenyRule{
						{Expression: "context.mfa_verified != true || (context.session_age_minutes ?? 0) >= 60"},
					},
					Tags: []string{"admin", "privileged"},
				},
				Status: schema.PolicyActive,
			},
		},
	}
}

func rego(template, trustDomain string) string {
	return strings.ReplaceAll(template, "{trust_domain}", trustDomain)
}

const checkoutRego = `package trustplane.production.inventory

import future.keywords.if
import future.keywords.in

default allow := false

allow if {
    input.subject == "spiffe://{trust_domain}/ns/production/sa/checkout-service"
    input.action in {"GET", "LIST"}
    input.resource == "inventory-service"
    input.trust_level >= 3
}
`

const routingRego = `package trustplane.ai.tars_routing

import future.keywords.if
import future.keywords.in

default allow := false

allow if {
    startswith(input.subject, "spiffe://{trust_domain}/ns/ai-platform/agent/")
    input.action == "route"
    input.resource == "tars-router"
    input.trust_level >= 2
    not budget_exceeded
}

budget_exceeded if {
    input.context.daily_tokens_used > 10000
}

deny if {
    input.context.target_model in {"gpt-4o", "claude-3-opus"}
    input.trust_level < 3
}
`

const adminRego = `package trustplane.system.admin

import future.keywords.if

default allow := false

allow if {
    input.subject == "admin@example.com"
    input.trust_level >= 4
    valid_session
}

valid_session if {
    input.context.mfa_verified == true
    input.context.session_age_minutes < 60
}
`
