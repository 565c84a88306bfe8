// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Config holds the store's dependencies.
type Config struct {
	Clock    clock.Clock
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Draft is the author-supplied part of a policy. The store assigns
// identity, status, timestamps, and version.
type Draft struct {
	Name        string                `yaml:"name" json:"name"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Namespace   string                `yaml:"namespace" json:"namespace"`
	AccessModel schema.AccessModel    `yaml:"access_model,omitempty" json:"access_model,omitempty"`
	Language    schema.PolicyLanguage `yaml:"language,omitempty" json:"language,omitempty"`
	Content     string                `yaml:"content,omitempty" json:"content,omitempty"`
	Subjects    []string              `yaml:"subjects" json:"subjects"`
	Resources   []string              `yaml:"resources" json:"resources"`
	Actions     []string              `yaml:"actions" json:"actions"`
	MinTrust    schema.TrustLevel     `yaml:"min_trust" json:"min_trust"`
	DenyRules   []schema.DenyRule     `yaml:"deny_rules,omitempty" json:"deny_rules,omitempty"`
	Tags        []string              `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Policy returns the draft as an unstored policy: no ID, draft
// status, version zero.
func (d Draft) Policy() schema.Policy {
	accessModel := d.AccessModel
	if accessModel == "" {
		accessModel = schema.AccessZeroTrust
	}
	return schema.Policy{
		Name:        d.Name,
		Description: d.Description,
		Status:      schema.PolicyDraft,
		Namespace:   d.Namespace,
		AccessModel: accessModel,
		Language:    d.Language,
		Content:     d.Content,
		Subjects:    slices.Clone(d.Subjects),
		Resources:   slices.Clone(d.Resources),
		Actions:     slices.Clone(d.Actions),
		MinTrust:    d.MinTrust,
		DenyRules:   slices.Clone(d.DenyRules),
		Tags:        slices.Clone(d.Tags),
	}
}

// check validates the fields Compile does not cover.
func check(policy schema.Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("policy name is empty: %w", schema.ErrValidation)
	}
	if policy.Namespace == "" {
		return fmt.Errorf("policy %q: namespace is empty: %w", policy.Name, schema.ErrValidation)
	}
	if !policy.AccessModel.Valid() {
		return fmt.Errorf("policy %q: access model %q: %w", policy.Name, policy.AccessModel, schema.ErrValidation)
	}
	if policy.Language != "" && !policy.Language.Valid() {
		return fmt.Errorf("policy %q: language %q: %w", policy.Name, policy.Language, schema.ErrValidation)
	}
	return nil
}

type entry struct {
	compiled *Compiled
}

// Store holds policies. It is safe for concurrent use; readers get
// immutable snapshots.
type Store struct {
	clock    clock.Clock
	recorder audit.Recorder
	logger   *slog.Logger

	mu       sync.RWMutex
	sequence uint64
	order    []*entry
	byID     map[string]*entry
}

// New creates an empty store.
func New(cfg Config) *Store {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = audit.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		clock:    clock.Or(cfg.Clock),
		recorder: recorder,
		logger:   logger,
		byID:     make(map[string]*entry),
	}
}

// Create stores a new policy in draft status. The creator is taken
// from the context actor.
func (s *Store) Create(ctx context.Context, draft Draft) (schema.Policy, error) {
	policy := draft.Policy()
	if err := check(policy); err != nil {
		return schema.Policy{}, err
	}

	now := s.clock.Now().UTC()
	policy.ID = uuid.NewString()
	policy.CreatedBy = audit.ActorFrom(ctx)
	policy.CreatedAt = now
	policy.UpdatedAt = now
	policy.Version = 1

	compiled, err := Compile(policy)
	if err != nil {
		return schema.Policy{}, fmt.Errorf("policy %q: %w", policy.Name, err)
	}

	s.mu.Lock()
	s.sequence++
	compiled.policy.Sequence = s.sequence
	stored := &entry{compiled: compiled}
	s.order = append(s.order, stored)
	s.byID[policy.ID] = stored
	s.mu.Unlock()

	created := compiled.Policy()
	s.record(ctx, schema.ActionPolicyCreate, created, fmt.Sprintf("created policy %q", created.Name))
	s.logger.Info("policy created",
		"id", created.ID,
		"name", created.Name,
		"namespace", created.Namespace,
		"sequence", created.Sequence,
	)
	return created, nil
}

// Get returns the policy with the given ID.
func (s *Store) Get(id string) (schema.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[id]
	if !ok {
		return schema.Policy{}, fmt.Errorf("policy %s: %w", id, schema.ErrNotFound)
	}
	return stored.compiled.Policy(), nil
}

// Lookup returns the first policy with the given name, in creation
// order.
func (s *Store) Lookup(name string) (schema.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stored := range s.order {
		if stored.compiled.policy.Name == name {
			return stored.compiled.Policy(), nil
		}
	}
	return schema.Policy{}, fmt.Errorf("policy named %q: %w", name, schema.ErrNotFound)
}

// List yields policies in creation order. An empty namespace lists
// all policies; otherwise only policies stored under exactly that
// namespace are listed.
func (s *Store) List(namespace string) iter.Seq[schema.Policy] {
	return func(yield func(schema.Policy) bool) {
		for _, compiled := range s.snapshot(func(policy *schema.Policy) bool {
			return namespace == "" || policy.Namespace == namespace
		}) {
			if !yield(compiled.Policy()) {
				return
			}
		}
	}
}

// Activate moves a policy to active. Activating an active policy is a
// no-op that still records an audit event.
func (s *Store) Activate(ctx context.Context, id string) (schema.Policy, error) {
	return s.transition(ctx, id, schema.PolicyActive, schema.ActionPolicyActivate)
}

// Disable moves a policy to disabled.
func (s *Store) Disable(ctx context.Context, id string) (schema.Policy, error) {
	return s.transition(ctx, id, schema.PolicyDisabled, schema.ActionPolicyDisable)
}

func (s *Store) transition(ctx context.Context, id string, status schema.PolicyStatus, action string) (schema.Policy, error) {
	s.mu.Lock()
	stored, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return schema.Policy{}, fmt.Errorf("policy %s: %w", id, schema.ErrNotFound)
	}

	policy := stored.compiled.policy
	previous := policy.Status
	changed := previous != status
	if changed {
		policy.Status = status
		policy.Version++
		policy.UpdatedAt = s.clock.Now().UTC()
		stored.compiled = stored.compiled.withStatus(policy)
	}
	result := stored.compiled.Policy()
	s.mu.Unlock()

	reason := fmt.Sprintf("already %s", status)
	if changed {
		reason = fmt.Sprintf("%s -> %s (version %d)", previous, status, result.Version)
		s.logger.Info("policy status changed",
			"id", id,
			"name", result.Name,
			"from", previous,
			"to", status,
			"version", result.Version,
		)
	}
	s.record(ctx, action, result, reason)
	return result, nil
}

// ActivePolicies returns the active policies that apply to namespace:
// those stored under namespace itself or under the global namespace,
// in creation order.
func (s *Store) ActivePolicies(namespace string) []schema.Policy {
	active := s.Active(namespace)
	policies := make([]schema.Policy, len(active))
	for index, compiled := range active {
		policies[index] = compiled.Policy()
	}
	return policies
}

// Active is ActivePolicies in evaluation-ready form.
func (s *Store) Active(namespace string) []*Compiled {
	return s.snapshot(func(policy *schema.Policy) bool {
		return policy.Status == schema.PolicyActive &&
			(policy.Namespace == namespace || policy.Namespace == schema.GlobalNamespace)
	})
}

// Len returns the number of stored policies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) snapshot(keep func(*schema.Policy) bool) []*Compiled {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var selected []*Compiled
	for _, stored := range s.order {
		if keep(&stored.compiled.policy) {
			selected = append(selected, stored.compiled)
		}
	}
	return selected
}

func (s *Store) record(ctx context.Context, action string, policy schema.Policy, reason string) {
	s.recorder.Append(ctx, schema.AuditEvent{
		Kind:      schema.EventPolicy,
		Action:    action,
		Actor:     audit.ActorFrom(ctx),
		Target:    policy.ID,
		Namespace: policy.Namespace,
		Outcome:   schema.OutcomeAllow,
		Reason:    reason,
	})
}
