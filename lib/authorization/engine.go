// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/policy"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Decision reasons that do not name a policy.
const (
	ReasonUnknownSubject = "unknown or inactive subject"
	ReasonImplicitDeny   = "no matching policy — implicit deny"
)

// Identities resolves request subjects. *identity.Store implements
// it.
type Identities interface {
	Resolve(subject string) (schema.Identity, bool)
	Touch(id string)
}

// Policies supplies the active policy snapshot for a namespace, in
// evaluation order. *policy.Store implements it.
type Policies interface {
	Active(namespace string) []*policy.Compiled
}

// Config holds the engine's dependencies. Identities and Policies are
// required.
type Config struct {
	Identities Identities
	Policies   Policies
	Recorder   audit.Recorder
	Clock      clock.Clock
	Logger     *slog.Logger

	// LastDecisionID resumes the decision counter, e.g. from a
	// restored audit trail. The first decision gets LastDecisionID+1.
	LastDecisionID uint64
}

// Engine evaluates access requests. It is safe for concurrent use and
// holds no state between calls other than the decision counter.
//
// Policy evaluation runs under read locks only. Assigning a decision
// ID and appending its audit event happen together under recordMu, so
// decision IDs ascend in trail order.
type Engine struct {
	identities Identities
	policies   Policies
	recorder   audit.Recorder
	clock      clock.Clock
	logger     *slog.Logger

	recordMu sync.Mutex
	lastID   uint64
}

// NewEngine creates an engine over the given stores.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Identities == nil {
		return nil, errors.New("authorization: Identities is required")
	}
	if cfg.Policies == nil {
		return nil, errors.New("authorization: Policies is required")
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = audit.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		identities: cfg.Identities,
		policies:   cfg.Policies,
		recorder:   recorder,
		clock:      clock.Or(cfg.Clock),
		logger:     logger,
		lastID:     cfg.LastDecisionID,
	}, nil
}

// Evaluate decides request and records the decision in the audit
// trail. Only malformed requests and an already-cancelled context
// return an error; every other outcome, including failures to resolve
// the subject, is a deny decision.
func (e *Engine) Evaluate(ctx context.Context, request Request) (schema.Decision, error) {
	if err := request.Validate(); err != nil {
		return schema.Decision{}, err
	}
	if err := ctx.Err(); err != nil {
		return schema.Decision{}, fmt.Errorf("evaluating %s %s on %s: %w", request.Subject, request.Action, request.Resource, err)
	}

	start := e.clock.Now()
	result := e.evaluate(request, false)

	decision := schema.Decision{
		Subject:   request.Subject,
		Resource:  request.Resource,
		Action:    request.Action,
		Namespace: result.namespace,
		Context:   maps.Clone(request.Context),
		Allowed:   result.allowed,
		Reason:    result.reason,
		Timestamp: start.UTC(),
	}
	if result.resolved {
		decision.TrustLevel = result.identity.TrustLevel
	}
	if result.policy != nil {
		decision.PolicyID = result.policy.ID()
		decision.PolicyName = result.policy.Name()
	}
	decision.Duration = e.clock.Since(start)

	// The decision is returned only once it is in the trail, even if
	// the caller gave up in the meantime.
	e.recordMu.Lock()
	e.lastID++
	decision.ID = e.lastID
	e.recorder.Append(context.WithoutCancel(ctx), schema.AuditEvent{
		Kind:       schema.EventDecision,
		Action:     schema.ActionDecisionEvaluate,
		Actor:      request.Subject,
		Target:     request.Resource + ":" + request.Action,
		Namespace:  decision.Namespace,
		Outcome:    decision.Outcome(),
		Reason:     decision.Reason,
		Timestamp:  decision.Timestamp,
		DecisionID: decision.ID,
	})
	e.recordMu.Unlock()

	if result.resolved {
		e.identities.Touch(result.identity.ID)
	}
	e.logger.Debug("access evaluated",
		"decision_id", decision.ID,
		"subject", decision.Subject,
		"resource", decision.Resource,
		"action", decision.Action,
		"namespace", decision.Namespace,
		"allowed", decision.Allowed,
		"policy", decision.PolicyName,
		"reason", decision.Reason,
	)
	return decision, nil
}

// Explain evaluates request and reports each policy's part in the
// outcome. Nothing is audited and the decision counter is untouched.
func (e *Engine) Explain(ctx context.Context, request Request) (Trace, error) {
	if err := request.Validate(); err != nil {
		return Trace{}, err
	}
	if err := ctx.Err(); err != nil {
		return Trace{}, err
	}

	result := e.evaluate(request, true)
	trace := Trace{
		Request:   request,
		Namespace: result.namespace,
		Resolved:  result.resolved,
		Steps:     result.steps,
		Allowed:   result.allowed,
		Reason:    result.reason,
	}
	if result.found {
		identity := result.identity
		trace.Identity = &identity
	}
	if result.policy != nil {
		trace.PolicyID = result.policy.ID()
		trace.PolicyName = result.policy.Name()
	}
	return trace, nil
}

type evaluation struct {
	namespace string

	// found is true when the subject named an identity; resolved
	// additionally requires that identity to be active.
	found    bool
	resolved bool
	identity schema.Identity

	allowed bool
	policy  *policy.Compiled
	reason  string

	steps []Step
}

func (e *Engine) evaluate(request Request, explain bool) evaluation {
	var result evaluation
	result.namespace = request.Namespace

	identity, found := e.identities.Resolve(request.Subject)
	if found {
		result.found = true
		result.identity = identity
		if result.namespace == "" {
			result.namespace = identity.Namespace
		}
	}
	if !found || !identity.Active {
		result.reason = ReasonUnknownSubject
		return result
	}
	result.resolved = true

	input := policy.Input{
		Subject:    request.Subject,
		Resource:   request.Resource,
		Action:     request.Action,
		Namespace:  result.namespace,
		Kind:       identity.Kind,
		TrustLevel: identity.TrustLevel,
		Context:    request.Context,
	}

	candidates := e.policies.Active(result.namespace)
	for index, candidate := range candidates {
		step := Step{PolicyID: candidate.ID(), PolicyName: candidate.Name()}
		decided := e.check(candidate, input, &step)
		if explain {
			result.steps = append(result.steps, step)
		}
		if !decided {
			continue
		}

		result.policy = candidate
		if step.Result == StepAllow {
			result.allowed = true
			result.reason = "allowed by policy " + candidate.Name()
		} else {
			result.reason = fmt.Sprintf("explicit deny by policy %s: %s", candidate.Name(), step.DenyRule)
		}
		if explain {
			for _, rest := range candidates[index+1:] {
				result.steps = append(result.steps, Step{
					PolicyID:   rest.ID(),
					PolicyName: rest.Name(),
					Result:     StepNotReached,
				})
			}
		}
		return result
	}

	result.reason = ReasonImplicitDeny
	return result
}

// check runs one policy against input, filling in step. It returns
// true when the policy decides the request, either way.
func (e *Engine) check(candidate *policy.Compiled, input policy.Input, step *Step) bool {
	subject, ok := candidate.MatchSubject(input.Subject)
	if !ok {
		step.Result = StepSubjectMismatch
		return false
	}
	step.SubjectPattern = subject

	resource, ok := candidate.MatchResource(input.Resource)
	if !ok {
		step.Result = StepResourceMismatch
		return false
	}
	step.ResourcePattern = resource

	if !candidate.MatchAction(input.Action) {
		step.Result = StepActionMismatch
		return false
	}

	if !input.TrustLevel.AtLeast(candidate.MinTrust()) {
		step.Result = StepTrustTooLow
		step.Detail = fmt.Sprintf("trust %s is below the policy minimum %s", input.TrustLevel, candidate.MinTrust())
		return false
	}

	rule, triggered, err := candidate.Deny(input)
	if err != nil {
		e.logger.Warn("deny rule failed to evaluate, treating as triggered",
			"policy", candidate.Name(),
			"rule", rule.String(),
			"error", err,
		)
		step.Detail = err.Error()
	}
	if triggered {
		step.Result = StepExplicitDeny
		step.DenyRule = rule.String()
		return true
	}

	step.Result = StepAllow
	return true
}
