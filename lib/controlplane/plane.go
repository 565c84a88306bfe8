// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/authorization"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/config"
	"github.com/bureau-foundation/trustplane/lib/credential"
	"github.com/bureau-foundation/trustplane/lib/digest"
	"github.com/bureau-foundation/trustplane/lib/identity"
	"github.com/bureau-foundation/trustplane/lib/policy"
	"github.com/bureau-foundation/trustplane/lib/schema"
	"github.com/bureau-foundation/trustplane/lib/secret"
	"github.com/bureau-foundation/trustplane/lib/sqlitepool"
)

// Options are the process-level dependencies of a Plane.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Plane is a running trustplane instance.
type Plane struct {
	Identities  *identity.Store
	Policies    *policy.Store
	Credentials *credential.Issuer
	Engine      *authorization.Engine
	Trail       *audit.Trail

	keyring *credential.Keyring
	pool    *sqlitepool.Pool
	logger  *slog.Logger
}

// Open builds a Plane from cfg. The configured directories are
// created as needed. When cfg.Audit.Persist is set, the stored audit
// chain is verified and restored before anything new is appended.
func Open(ctx context.Context, cfg *config.Config, options Options) (*Plane, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := clock.Or(options.Clock)

	defaultTrust, err := parseDefaultTrust(cfg.Identity.DefaultTrust)
	if err != nil {
		return nil, err
	}
	defaultTTL, err := cfg.Credentials.DefaultTTLDuration()
	if err != nil {
		return nil, err
	}
	documentCeilings, err := parseCeilings("credentials.document_ceilings", cfg.Credentials.DocumentCeilings)
	if err != nil {
		return nil, err
	}
	tokenCeilings, err := parseCeilings("credentials.token_ceilings", cfg.Credentials.TokenCeilings)
	if err != nil {
		return nil, err
	}

	plane := &Plane{logger: logger}

	trailConfig := audit.Config{Clock: clk, Logger: logger.With("component", "audit")}
	var restored []schema.AuditEvent
	if cfg.Audit.Persist {
		plane.pool, err = audit.OpenSQLite(sqlitepool.Config{
			Path:     cfg.Paths.AuditDB,
			PoolSize: cfg.Audit.PoolSize,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		restored, err = audit.LoadEvents(ctx, plane.pool)
		if err != nil {
			plane.Close()
			return nil, fmt.Errorf("loading audit trail: %w", err)
		}
		trailConfig.Sink = audit.NewSQLiteSink(plane.pool)
	}
	plane.Trail = audit.New(trailConfig)
	if err := plane.Trail.Restore(restored); err != nil {
		plane.Close()
		return nil, fmt.Errorf("restoring audit trail from %s: %w", cfg.Paths.AuditDB, err)
	}

	sealing := credential.Sealing{Recipients: cfg.Credentials.SealRecipients}
	if cfg.Credentials.SealIdentityFile != "" {
		sealing.Identity, err = secret.ReadFromPath(cfg.Credentials.SealIdentityFile)
		if err != nil {
			plane.Close()
			return nil, fmt.Errorf("reading seal identity: %w", err)
		}
		defer sealing.Identity.Close()
	}
	var generated bool
	plane.keyring, generated, err = credential.LoadOrGenerateKeyring(cfg.Paths.Keys, sealing)
	if err != nil {
		plane.Close()
		return nil, err
	}
	if generated {
		logger.Info("generated credential keyring", "path", cfg.Paths.Keys, "key_id", plane.keyring.KeyID())
	}

	plane.Identities, err = identity.New(identity.Config{
		TrustDomain:  cfg.TrustDomain,
		DefaultTrust: defaultTrust,
		Clock:        clk,
		Recorder:     plane.Trail,
		Logger:       logger.With("component", "identity"),
	})
	if err != nil {
		plane.Close()
		return nil, err
	}

	plane.Policies = policy.New(policy.Config{
		Clock:    clk,
		Recorder: plane.Trail,
		Logger:   logger.With("component", "policy"),
	})

	plane.Credentials, err = credential.NewIssuer(credential.Config{
		TrustDomain:      cfg.TrustDomain,
		Issuer:           cfg.Credentials.Issuer,
		Audience:         cfg.Credentials.Audience,
		DefaultTTL:       defaultTTL,
		DocumentCeilings: documentCeilings,
		TokenCeilings:    tokenCeilings,
		Keyring:          plane.keyring,
		Clock:            clk,
		Recorder:         plane.Trail,
		Logger:           logger.With("component", "credential"),
	})
	if err != nil {
		plane.Close()
		return nil, err
	}

	plane.Engine, err = authorization.NewEngine(authorization.Config{
		Identities:     plane.Identities,
		Policies:       plane.Policies,
		Recorder:       plane.Trail,
		Clock:          clk,
		Logger:         logger.With("component", "authorization"),
		LastDecisionID: lastDecisionID(restored),
	})
	if err != nil {
		plane.Close()
		return nil, err
	}

	logger.Info("control plane ready",
		"environment", cfg.Environment,
		"trust_domain", cfg.TrustDomain,
		"key_id", plane.keyring.KeyID(),
		"audit_persist", cfg.Audit.Persist,
		"audit_events", plane.Trail.Len(),
	)
	return plane, nil
}

// Close releases the keyring and the audit database. It is safe to
// call on a partially opened Plane.
func (p *Plane) Close() error {
	var errs []error
	if p.keyring != nil {
		errs = append(errs, p.keyring.Close())
		p.keyring = nil
	}
	if p.pool != nil {
		errs = append(errs, p.pool.Close())
		p.pool = nil
	}
	return errors.Join(errs...)
}

// ApplyResult reports what a bundle created.
type ApplyResult struct {
	Identities []schema.Identity `json:"identities"`
	Policies   []schema.Policy   `json:"policies"`
}

// Apply registers the bundle's identities, then creates its policies
// and moves each to its declared status. Apply stops at the first
// error; everything applied before it remains.
func (p *Plane) Apply(ctx context.Context, bundle *policy.Bundle) (ApplyResult, error) {
	var result ApplyResult
	for _, spec := range bundle.Identities {
		registered, err := p.Identities.Register(ctx, identity.RegisterRequest{
			Name:       spec.Name,
			Kind:       spec.Kind,
			Namespace:  spec.Namespace,
			Contact:    spec.Contact,
			TrustLevel: spec.TrustLevel,
			Labels:     spec.Labels,
		})
		if err != nil {
			return result, fmt.Errorf("identity %q: %w", spec.Name, err)
		}
		result.Identities = append(result.Identities, registered)
	}

	for _, spec := range bundle.Policies {
		created, err := p.Policies.Create(ctx, spec.Draft)
		if err != nil {
			return result, fmt.Errorf("policy %q: %w", spec.Name, err)
		}
		switch spec.Status {
		case schema.PolicyActive:
			created, err = p.Policies.Activate(ctx, created.ID)
		case schema.PolicyDisabled:
			created, err = p.Policies.Disable(ctx, created.ID)
		}
		if err != nil {
			return result, fmt.Errorf("policy %q: %w", spec.Name, err)
		}
		result.Policies = append(result.Policies, created)
	}
	return result, nil
}

// ApplyFile loads the bundle at path and applies it.
func (p *Plane) ApplyFile(ctx context.Context, path string) (ApplyResult, error) {
	bundle, err := policy.LoadBundle(path)
	if err != nil {
		return ApplyResult{}, err
	}
	hash, err := digest.File(path)
	if err != nil {
		return ApplyResult{}, err
	}
	result, err := p.Apply(ctx, bundle)
	if err != nil {
		return result, fmt.Errorf("applying %s: %w", path, err)
	}
	p.logger.Info("bundle applied",
		"path", path,
		"digest", hash.String(),
		"identities", len(result.Identities),
		"policies", len(result.Policies),
	)
	return result, nil
}

// IssueDocument issues a verifiable document to the identity with the
// given ID.
func (p *Plane) IssueDocument(ctx context.Context, identityID string, ttl time.Duration) (credential.Document, error) {
	subject, err := p.Identities.Get(identityID)
	if err != nil {
		return credential.Document{}, err
	}
	document, err := p.Credentials.IssueDocument(ctx, subject, ttl)
	if err != nil {
		return credential.Document{}, err
	}
	p.Identities.Touch(subject.ID)
	return document, nil
}

// IssueToken issues a signed token to the identity with the given ID.
func (p *Plane) IssueToken(ctx context.Context, identityID string, ttl time.Duration) (credential.Token, error) {
	subject, err := p.Identities.Get(identityID)
	if err != nil {
		return credential.Token{}, err
	}
	token, err := p.Credentials.IssueToken(ctx, subject, ttl)
	if err != nil {
		return credential.Token{}, err
	}
	p.Identities.Touch(subject.ID)
	return token, nil
}

// Stats summarizes the plane for a namespace; empty covers all.
type Stats struct {
	Identities     int         `json:"identities"`
	Policies       int         `json:"policies"`
	ActivePolicies int         `json:"active_policies"`
	Audit          audit.Stats `json:"audit"`
}

// Stats counts identities, policies, and audit outcomes.
func (p *Plane) Stats(namespace string) Stats {
	stats := Stats{Audit: p.Trail.Stats(namespace)}
	for range p.Identities.List(identity.Filter{Namespace: namespace}) {
		stats.Identities++
	}
	for range p.Policies.List(namespace) {
		stats.Policies++
	}
	if namespace == "" {
		for current := range p.Policies.List("") {
			if current.Status == schema.PolicyActive {
				stats.ActivePolicies++
			}
		}
	} else {
		stats.ActivePolicies = len(p.Policies.ActivePolicies(namespace))
	}
	return stats
}

func parseDefaultTrust(table map[string]string) (map[schema.IdentityKind]schema.TrustLevel, error) {
	parsed := make(map[schema.IdentityKind]schema.TrustLevel, len(table))
	for kindName, levelName := range table {
		kind, err := schema.ParseIdentityKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("identity.default_trust: %w", err)
		}
		level, err := schema.ParseTrustLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("identity.default_trust.%s: %w", kindName, err)
		}
		parsed[kind] = level
	}
	return parsed, nil
}

func parseCeilings(field string, table map[string]string) (map[schema.IdentityKind]time.Duration, error) {
	durations, err := config.ParseDurations(field, table)
	if err != nil {
		return nil, err
	}
	parsed := make(map[schema.IdentityKind]time.Duration, len(durations))
	for kindName, duration := range durations {
		kind, err := schema.ParseIdentityKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		parsed[kind] = duration
	}
	return parsed, nil
}

func lastDecisionID(events []schema.AuditEvent) uint64 {
	var last uint64
	for _, event := range events {
		last = max(last, event.DecisionID)
	}
	return last
}
