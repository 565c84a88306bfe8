// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Input is the request view deny rules are evaluated against.
type Input struct {
	Subject    string
	Resource   string
	Action     string
	Namespace  string
	Kind       schema.IdentityKind
	TrustLevel schema.TrustLevel
	Context    map[string]any
}

// env is the expression environment. Field names are the variable
// names visible to deny expressions.
type env struct {
	Subject    string         `expr:"subject"`
	Resource   string         `expr:"resource"`
	Action     string         `expr:"action"`
	Namespace  string         `expr:"namespace"`
	Kind       string         `expr:"kind"`
	TrustLevel int            `expr:"trust_level"`
	Context    map[string]any `expr:"context"`
}

func (in Input) env() env {
	context := in.Context
	if context == nil {
		context = map[string]any{}
	}
	return env{
		Subject:    in.Subject,
		Resource:   in.Resource,
		Action:     in.Action,
		Namespace:  in.Namespace,
		Kind:       string(in.Kind),
		TrustLevel: int(in.TrustLevel),
		Context:    context,
	}
}

type compiledRule struct {
	rule    schema.DenyRule
	program *vm.Program
}

func compileRule(rule schema.DenyRule) (compiledRule, error) {
	if err := rule.Validate(); err != nil {
		return compiledRule{}, err
	}
	if rule.Expression == "" {
		return compiledRule{rule: rule}, nil
	}
	program, err := expr.Compile(rule.Expression, expr.Env(env{}), expr.AsBool())
	if err != nil {
		return compiledRule{}, fmt.Errorf("deny rule expression %q: %v: %w", rule.Expression, err, schema.ErrValidation)
	}
	return compiledRule{rule: rule, program: program}, nil
}

// triggered evaluates the rule. An expression that fails at run time
// counts as triggered and the error is returned alongside.
func (r compiledRule) triggered(input Input) (bool, error) {
	rule := r.rule
	switch {
	case rule.ContextEquals != nil:
		value, ok := input.Context[rule.ContextEquals.Key]
		return ok && valuesEqual(value, rule.ContextEquals.Value), nil
	case rule.TrustBelow != nil:
		return input.TrustLevel < *rule.TrustBelow, nil
	case r.program != nil:
		output, err := expr.Run(r.program, input.env())
		if err != nil {
			return true, fmt.Errorf("deny rule %q: %w", rule.Expression, err)
		}
		result, ok := output.(bool)
		if !ok {
			return true, fmt.Errorf("deny rule %q returned %T", rule.Expression, output)
		}
		return result, nil
	}
	return false, nil
}

// valuesEqual compares context values. Numbers compare by value
// regardless of their Go type, since JSON request contexts decode to
// float64 and YAML policy files decode to int.
func valuesEqual(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
