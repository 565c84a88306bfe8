// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Compiled is an immutable, evaluation-ready policy. A status change
// in the store produces a new Compiled; holders of an older one keep a
// consistent view.
type Compiled struct {
	policy    schema.Policy
	subjects  PatternSet
	resources PatternSet
	actions   ActionSet
	denyRules []compiledRule
}

// Compile checks a policy's patterns and deny rules and prepares them
// for evaluation. All failures wrap [schema.ErrValidation].
func Compile(policy schema.Policy) (*Compiled, error) {
	subjects, err := ParsePatterns("subjects", policy.Subjects)
	if err != nil {
		return nil, err
	}
	resources, err := ParsePatterns("resources", policy.Resources)
	if err != nil {
		return nil, err
	}
	actions, err := ParseActions(policy.Actions)
	if err != nil {
		return nil, err
	}
	if !policy.MinTrust.Valid() {
		return nil, fmt.Errorf("min_trust %d: %w", uint8(policy.MinTrust), schema.ErrValidation)
	}

	denyRules := make([]compiledRule, 0, len(policy.DenyRules))
	for index, rule := range policy.DenyRules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("deny_rules[%d]: %w", index, err)
		}
		denyRules = append(denyRules, compiled)
	}

	return &Compiled{
		policy:    clonePolicy(policy),
		subjects:  subjects,
		resources: resources,
		actions:   actions,
		denyRules: denyRules,
	}, nil
}

// Policy returns a copy of the compiled policy.
func (c *Compiled) Policy() schema.Policy {
	return clonePolicy(c.policy)
}

func (c *Compiled) ID() string   { return c.policy.ID }
func (c *Compiled) Name() string { return c.policy.Name }

func (c *Compiled) MinTrust() schema.TrustLevel {
	return c.policy.MinTrust
}

// MatchSubject returns the subject pattern that matched.
func (c *Compiled) MatchSubject(subject string) (string, bool) {
	return c.subjects.Match(subject)
}

// MatchResource returns the resource pattern that matched.
func (c *Compiled) MatchResource(resource string) (string, bool) {
	return c.resources.Match(resource)
}

func (c *Compiled) MatchAction(action string) bool {
	return c.actions.Match(action)
}

// Deny evaluates the deny rules in order and returns the first that
// triggers. err is non-nil when an expression failed at run time; the
// rule is then reported as triggered.
func (c *Compiled) Deny(input Input) (rule schema.DenyRule, triggered bool, err error) {
	for _, deny := range c.denyRules {
		hit, runErr := deny.triggered(input)
		if hit {
			return deny.rule, true, runErr
		}
	}
	return schema.DenyRule{}, false, nil
}

// withStatus returns a copy carrying an updated lifecycle state. The
// compiled matchers are shared.
func (c *Compiled) withStatus(policy schema.Policy) *Compiled {
	next := *c
	next.policy = clonePolicy(policy)
	return &next
}

func clonePolicy(policy schema.Policy) schema.Policy {
	policy.Subjects = slices.Clone(policy.Subjects)
	policy.Resources = slices.Clone(policy.Resources)
	policy.Actions = slices.Clone(policy.Actions)
	policy.Tags = slices.Clone(policy.Tags)
	policy.DenyRules = slices.Clone(policy.DenyRules)
	return policy
}
