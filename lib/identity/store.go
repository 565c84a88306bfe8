// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spiffe/go-spiffe/v2/spiffeid"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// DefaultTrustLevels are the starting trust levels per kind when
// neither the request nor the configuration supplies one.
var DefaultTrustLevels = map[schema.IdentityKind]schema.TrustLevel{
	schema.KindHuman:          schema.TrustUntrusted,
	schema.KindWorkload:       schema.TrustLow,
	schema.KindAIAgent:        schema.TrustLow,
	schema.KindServiceAccount: schema.TrustLow,
}

// Config holds the store's dependencies.
type Config struct {
	// TrustDomain is the SPIFFE trust domain for structured
	// identifiers, e.g. "prod.example.com". Required.
	TrustDomain string

	// DefaultTrust overrides DefaultTrustLevels per kind.
	DefaultTrust map[schema.IdentityKind]schema.TrustLevel

	Clock    clock.Clock
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// RegisterRequest describes a new identity.
type RegisterRequest struct {
	Name      string
	Kind      schema.IdentityKind
	Namespace string

	// Contact is an email or similar handle; humans only.
	Contact string

	// TrustLevel, when non-nil, replaces the kind's default.
	TrustLevel *schema.TrustLevel

	Labels map[string]string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind      schema.IdentityKind
	Namespace string
}

type record struct {
	identity schema.Identity

	// lastSeen is Unix nanoseconds, updated under the read lock.
	lastSeen atomic.Int64
}

func (r *record) snapshot() schema.Identity {
	identity := r.identity
	identity.Labels = maps.Clone(r.identity.Labels)
	identity.LastSeen = time.Unix(0, r.lastSeen.Load()).UTC()
	return identity
}

// Store holds identity records. It is safe for concurrent use.
type Store struct {
	trustDomain  spiffeid.TrustDomain
	defaultTrust map[schema.IdentityKind]schema.TrustLevel
	clock        clock.Clock
	recorder     audit.Recorder
	logger       *slog.Logger

	mu           sync.RWMutex
	order        []*record
	byID         map[string]*record
	byStructured map[string]*record
	byContact    map[string]*record
}

// New creates an empty store.
func New(cfg Config) (*Store, error) {
	trustDomain, err := spiffeid.TrustDomainFromString(cfg.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("identity: trust domain %q: %v: %w", cfg.TrustDomain, err, schema.ErrValidation)
	}

	defaultTrust := maps.Clone(DefaultTrustLevels)
	for kind, level := range cfg.DefaultTrust {
		if !kind.Valid() || !level.Valid() {
			return nil, fmt.Errorf("identity: default trust %s=%s: %w", kind, level, schema.ErrValidation)
		}
		defaultTrust[kind] = level
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = audit.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		trustDomain:  trustDomain,
		defaultTrust: defaultTrust,
		clock:        clock.Or(cfg.Clock),
		recorder:     recorder,
		logger:       logger,
		byID:         make(map[string]*record),
		byStructured: make(map[string]*record),
		byContact:    make(map[string]*record),
	}, nil
}

// TrustDomain returns the store's trust domain name.
func (s *Store) TrustDomain() string {
	return s.trustDomain.Name()
}

// StructuredID derives the structured identifier for (kind,
// namespace, name). Humans have none and return "". A hierarchical
// namespace such as "production/payments" contributes one path
// segment per level. Components that are not valid SPIFFE path
// segments (spaces, empty levels) are formatted verbatim.
func (s *Store) StructuredID(kind schema.IdentityKind, namespace, name string) string {
	segment := kind.PathSegment()
	if segment == "" {
		return ""
	}
	segments := append([]string{"ns"}, strings.Split(namespace, "/")...)
	segments = append(segments, segment, name)
	id, err := spiffeid.FromSegments(s.trustDomain, segments...)
	if err != nil {
		s.logger.Debug("structured id is not a conforming SPIFFE ID",
			"kind", kind, "namespace", namespace, "name", name, "error", err)
		return fmt.Sprintf("spiffe://%s/ns/%s/%s/%s", s.trustDomain.Name(), namespace, segment, name)
	}
	return id.String()
}

// VerifyTrustDomain checks that subject is a SPIFFE ID in the store's
// trust domain, or a structured identifier this store assigned.
func (s *Store) VerifyTrustDomain(subject string) error {
	id, err := spiffeid.FromString(subject)
	if err != nil {
		s.mu.RLock()
		_, assigned := s.byStructured[subject]
		s.mu.RUnlock()
		if assigned {
			return nil
		}
		return fmt.Errorf("subject %q: %v: %w", subject, err, schema.ErrValidation)
	}
	if !id.MemberOf(s.trustDomain) {
		return fmt.Errorf("subject %q is outside trust domain %s: %w", subject, s.trustDomain.Name(), schema.ErrValidation)
	}
	return nil
}

// Register creates an identity. Validation failures are returned
// without an audit event; a successful registration is audited.
func (s *Store) Register(ctx context.Context, request RegisterRequest) (schema.Identity, error) {
	if request.Name == "" {
		return schema.Identity{}, fmt.Errorf("identity name is empty: %w", schema.ErrValidation)
	}
	if request.Namespace == "" {
		return schema.Identity{}, fmt.Errorf("identity namespace is empty: %w", schema.ErrValidation)
	}
	if !request.Kind.Valid() {
		return schema.Identity{}, fmt.Errorf("identity kind %q: %w", request.Kind, schema.ErrValidation)
	}
	if request.Contact != "" && request.Kind != schema.KindHuman {
		return schema.Identity{}, fmt.Errorf("contact is only valid for humans: %w", schema.ErrValidation)
	}

	trust := s.defaultTrust[request.Kind]
	if request.TrustLevel != nil {
		if !request.TrustLevel.Valid() {
			return schema.Identity{}, fmt.Errorf("trust level %d: %w", uint8(*request.TrustLevel), schema.ErrValidation)
		}
		trust = *request.TrustLevel
	}

	structuredID := s.StructuredID(request.Kind, request.Namespace, request.Name)

	now := s.clock.Now().UTC()
	entry := &record{identity: schema.Identity{
		ID:           uuid.NewString(),
		Name:         request.Name,
		Kind:         request.Kind,
		Namespace:    request.Namespace,
		TrustLevel:   trust,
		StructuredID: structuredID,
		Contact:      request.Contact,
		Labels:       maps.Clone(request.Labels),
		Active:       true,
		CreatedAt:    now,
	}}
	entry.lastSeen.Store(now.UnixNano())

	s.mu.Lock()
	if structuredID != "" {
		if _, exists := s.byStructured[structuredID]; exists {
			s.mu.Unlock()
			return schema.Identity{}, fmt.Errorf("identity %s: %w", structuredID, schema.ErrAlreadyExists)
		}
		s.byStructured[structuredID] = entry
	}
	if request.Contact != "" {
		if _, exists := s.byContact[request.Contact]; exists {
			delete(s.byStructured, structuredID)
			s.mu.Unlock()
			return schema.Identity{}, fmt.Errorf("contact %s: %w", request.Contact, schema.ErrAlreadyExists)
		}
		s.byContact[request.Contact] = entry
	}
	s.byID[entry.identity.ID] = entry
	s.order = append(s.order, entry)
	identity := entry.snapshot()
	s.mu.Unlock()

	s.record(ctx, schema.ActionIdentityRegister, identity, schema.OutcomeAllow,
		fmt.Sprintf("registered %s %q at trust %s", identity.Kind, identity.Name, identity.TrustLevel))
	s.logger.Info("identity registered",
		"id", identity.ID,
		"kind", identity.Kind,
		"namespace", identity.Namespace,
		"structured_id", identity.StructuredID,
	)
	return identity, nil
}

// Get returns the identity with the given ID.
func (s *Store) Get(id string) (schema.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byID[id]
	if !ok {
		return schema.Identity{}, fmt.Errorf("identity %s: %w", id, schema.ErrNotFound)
	}
	return entry.snapshot(), nil
}

// Resolve finds the identity a request subject refers to: by
// structured identifier, then by identity ID, then by human contact.
// Inactive identities are returned; callers check Active.
func (s *Store) Resolve(subject string) (schema.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.byStructured[subject]; ok {
		return entry.snapshot(), true
	}
	if entry, ok := s.byID[subject]; ok {
		return entry.snapshot(), true
	}
	if entry, ok := s.byContact[subject]; ok {
		return entry.snapshot(), true
	}
	return schema.Identity{}, false
}

// List yields identities matching filter in registration order. Each
// range works on a fresh snapshot.
func (s *Store) List(filter Filter) iter.Seq[schema.Identity] {
	return func(yield func(schema.Identity) bool) {
		s.mu.RLock()
		snapshot := make([]schema.Identity, 0, len(s.order))
		for _, entry := range s.order {
			if filter.Kind != "" && entry.identity.Kind != filter.Kind {
				continue
			}
			if filter.Namespace != "" && entry.identity.Namespace != filter.Namespace {
				continue
			}
			snapshot = append(snapshot, entry.snapshot())
		}
		s.mu.RUnlock()

		for _, identity := range snapshot {
			if !yield(identity) {
				return
			}
		}
	}
}

// Promote raises an identity's trust level. The new level must be
// strictly greater than the current one. Failures on an existing
// identity are audited as denials.
func (s *Store) Promote(ctx context.Context, id string, level schema.TrustLevel) (schema.Identity, error) {
	s.mu.Lock()
	entry, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return schema.Identity{}, fmt.Errorf("identity %s: %w", id, schema.ErrNotFound)
	}

	var failure error
	previous := entry.identity.TrustLevel
	switch {
	case !entry.identity.Active:
		failure = fmt.Errorf("promoting identity %s: %w", id, schema.ErrIdentityInactive)
	case !level.Valid():
		failure = fmt.Errorf("promoting identity %s to trust level %d: %w", id, uint8(level), schema.ErrValidation)
	case level <= previous:
		failure = fmt.Errorf("promoting identity %s from %s to %s: %w", id, previous, level, schema.ErrInvalidTransition)
	default:
		entry.identity.TrustLevel = level
	}
	identity := entry.snapshot()
	s.mu.Unlock()

	if failure != nil {
		s.record(ctx, schema.ActionIdentityPromote, identity, schema.OutcomeDeny, failure.Error())
		return schema.Identity{}, failure
	}
	s.record(ctx, schema.ActionIdentityPromote, identity, schema.OutcomeAllow,
		fmt.Sprintf("trust %s -> %s", previous, level))
	s.logger.Info("identity promoted", "id", id, "from", previous, "to", level)
	return identity, nil
}

// Deactivate marks an identity inactive. Deactivating an inactive
// identity succeeds and is still audited.
func (s *Store) Deactivate(ctx context.Context, id string) (schema.Identity, error) {
	s.mu.Lock()
	entry, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return schema.Identity{}, fmt.Errorf("identity %s: %w", id, schema.ErrNotFound)
	}
	wasActive := entry.identity.Active
	entry.identity.Active = false
	identity := entry.snapshot()
	s.mu.Unlock()

	reason := "deactivated"
	if !wasActive {
		reason = "already inactive"
	} else {
		s.logger.Info("identity deactivated", "id", id, "structured_id", identity.StructuredID)
	}
	s.record(ctx, schema.ActionIdentityDeactivate, identity, schema.OutcomeAllow, reason)
	return identity, nil
}

// Touch records that the identity was just seen on the decision or
// issuance path. It takes only the read lock and is not audited.
func (s *Store) Touch(id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.byID[id]; ok {
		entry.lastSeen.Store(s.clock.Now().UnixNano())
	}
}

func (s *Store) record(ctx context.Context, action string, identity schema.Identity, outcome schema.Outcome, reason string) {
	s.recorder.Append(ctx, schema.AuditEvent{
		Kind:      schema.EventIdentity,
		Action:    action,
		Actor:     audit.ActorFrom(ctx),
		Target:    identity.ID,
		Namespace: identity.Namespace,
		Outcome:   outcome,
		Reason:    reason,
	})
}
