// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"cmp"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

const (
	// DefaultIssuer is the token iss claim when Config.Issuer is empty.
	DefaultIssuer = "trustplane"

	// DefaultAudience is the token aud claim when Config.Audience is
	// empty.
	DefaultAudience = "trustplane-api"
)

// Config holds the issuer's parameters.
type Config struct {
	// TrustDomain names the documents' trust bundle. Required.
	TrustDomain string

	Issuer   string
	Audience string

	// DefaultTTL applies to requests with a non-positive TTL.
	// Defaults to DefaultTTL.
	DefaultTTL time.Duration

	// DocumentCeilings and TokenCeilings override entries of the
	// package-level ceiling tables.
	DocumentCeilings map[schema.IdentityKind]time.Duration
	TokenCeilings    map[schema.IdentityKind]time.Duration

	// Keyring is required and owned by the caller.
	Keyring *Keyring

	Clock    clock.Clock
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Issuer creates and verifies credentials. It is safe for concurrent
// use and holds no per-credential state.
type Issuer struct {
	trustDomain      string
	documentIssuer   string
	tokenIssuer      string
	audience         string
	defaultTTL       time.Duration
	documentCeilings map[schema.IdentityKind]time.Duration
	tokenCeilings    map[schema.IdentityKind]time.Duration
	keyring          *Keyring
	clock            clock.Clock
	recorder         audit.Recorder
	logger           *slog.Logger
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.TrustDomain == "" {
		return nil, fmt.Errorf("credential: trust domain is required: %w", schema.ErrValidation)
	}
	if cfg.Keyring == nil {
		return nil, fmt.Errorf("credential: keyring is required: %w", schema.ErrValidation)
	}

	issuer := &Issuer{
		trustDomain:      cfg.TrustDomain,
		documentIssuer:   "spiffe://" + cfg.TrustDomain,
		tokenIssuer:      cmp.Or(cfg.Issuer, DefaultIssuer),
		audience:         cmp.Or(cfg.Audience, DefaultAudience),
		defaultTTL:       DefaultTTL,
		documentCeilings: mergeCeilings(DocumentCeilings, cfg.DocumentCeilings),
		tokenCeilings:    mergeCeilings(TokenCeilings, cfg.TokenCeilings),
		keyring:          cfg.Keyring,
		clock:            clock.Or(cfg.Clock),
		recorder:         cfg.Recorder,
		logger:           cfg.Logger,
	}
	if cfg.DefaultTTL > 0 {
		issuer.defaultTTL = cfg.DefaultTTL
	}
	if issuer.recorder == nil {
		issuer.recorder = audit.Discard
	}
	if issuer.logger == nil {
		issuer.logger = slog.New(slog.DiscardHandler)
	}
	return issuer, nil
}

func mergeCeilings(base, overrides map[schema.IdentityKind]time.Duration) map[schema.IdentityKind]time.Duration {
	merged := maps.Clone(base)
	for kind, ceiling := range overrides {
		if ceiling > 0 {
			merged[kind] = ceiling
		}
	}
	return merged
}

// TrustBundle returns the bundle documents are signed under.
func (iss *Issuer) TrustBundle() TrustBundle {
	return TrustBundle{
		TrustDomain: iss.trustDomain,
		KeyID:       iss.keyring.KeyID(),
		PublicKey:   iss.keyring.PublicKey(),
	}
}

// IssueDocument creates a verifiable document for identity. Humans
// get ErrUnsupportedKind and inactive identities ErrIdentityInactive.
func (iss *Issuer) IssueDocument(ctx context.Context, identity schema.Identity, requested time.Duration) (Document, error) {
	if !identity.Active {
		return Document{}, iss.reject(ctx, schema.ActionDocumentIssue, identity,
			fmt.Errorf("document for identity %s: %w", identity.ID, schema.ErrIdentityInactive))
	}
	ceiling, ok := iss.documentCeilings[identity.Kind]
	if !ok || identity.StructuredID == "" {
		return Document{}, iss.reject(ctx, schema.ActionDocumentIssue, identity,
			fmt.Errorf("document for %s identity %s: %w", identity.Kind, identity.ID, schema.ErrUnsupportedKind))
	}

	ttl, clamped := ClampTTL(requested, iss.defaultTTL, ceiling)
	serial, err := newSerial()
	if err != nil {
		return Document{}, iss.fail(ctx, schema.ActionDocumentIssue, identity, err)
	}

	now := iss.clock.Now().UTC().Truncate(time.Second)
	document := Document{
		Subject:    identity.StructuredID,
		IdentityID: identity.ID,
		Issuer:     iss.documentIssuer,
		Serial:     serial,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		TTL:        ttl,
		Clamped:    clamped,
		Bundle:     iss.TrustBundle(),
	}
	payload, err := document.SigningPayload()
	if err != nil {
		return Document{}, iss.fail(ctx, schema.ActionDocumentIssue, identity, err)
	}
	document.Signature = iss.keyring.sign(payload)

	iss.recorder.Append(ctx, schema.AuditEvent{
		Kind:         schema.EventCredential,
		Action:       schema.ActionDocumentIssue,
		Actor:        audit.ActorFrom(ctx),
		Target:       identity.ID,
		Namespace:    identity.Namespace,
		Outcome:      schema.OutcomeAllow,
		Reason:       issuedReason("document", ttl, clamped),
		CredentialID: serial,
	})
	iss.logger.Info("document issued",
		"identity", identity.ID,
		"subject", document.Subject,
		"serial", serial,
		"ttl", ttl,
		"clamped", clamped,
	)
	return document, nil
}

// VerifyDocument checks a document's signature against this issuer's
// trust bundle and its expiry against the issuer clock.
func (iss *Issuer) VerifyDocument(document Document) error {
	if err := VerifyDocumentSignature(document, iss.TrustBundle()); err != nil {
		return err
	}
	if document.Issuer != iss.documentIssuer {
		return fmt.Errorf("document %s: issuer %q: %w", document.Serial, document.Issuer, schema.ErrSignatureInvalid)
	}
	if !iss.clock.Now().Before(document.ExpiresAt) {
		return fmt.Errorf("document %s expired at %s: %w", document.Serial, document.ExpiresAt.Format(time.RFC3339), schema.ErrExpired)
	}
	return nil
}

// IssueToken creates an HS256 token for identity.
func (iss *Issuer) IssueToken(ctx context.Context, identity schema.Identity, requested time.Duration) (Token, error) {
	if !identity.Active {
		return Token{}, iss.reject(ctx, schema.ActionTokenIssue, identity,
			fmt.Errorf("token for identity %s: %w", identity.ID, schema.ErrIdentityInactive))
	}
	ceiling, ok := iss.tokenCeilings[identity.Kind]
	if !ok {
		return Token{}, iss.reject(ctx, schema.ActionTokenIssue, identity,
			fmt.Errorf("token for %s identity %s: %w", identity.Kind, identity.ID, schema.ErrUnsupportedKind))
	}

	ttl, clamped := ClampTTL(requested, iss.defaultTTL, ceiling)
	now := iss.clock.Now().UTC().Truncate(time.Second)
	claims := Claims{
		Subject:      identity.ID,
		Issuer:       iss.tokenIssuer,
		Audience:     iss.audience,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
		ID:           uuid.NewString(),
		Name:         identity.Name,
		Namespace:    identity.Namespace,
		Kind:         identity.Kind,
		TrustLevel:   identity.TrustLevel,
		StructuredID: identity.StructuredID,
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(iss.keyring.hmacKey())
	if err != nil {
		return Token{}, iss.fail(ctx, schema.ActionTokenIssue, identity, fmt.Errorf("signing token: %w", err))
	}

	iss.recorder.Append(ctx, schema.AuditEvent{
		Kind:         schema.EventCredential,
		Action:       schema.ActionTokenIssue,
		Actor:        audit.ActorFrom(ctx),
		Target:       identity.ID,
		Namespace:    identity.Namespace,
		Outcome:      schema.OutcomeAllow,
		Reason:       issuedReason("token", ttl, clamped),
		CredentialID: claims.ID,
	})
	iss.logger.Info("token issued",
		"identity", identity.ID,
		"jti", claims.ID,
		"ttl", ttl,
		"clamped", clamped,
	)
	return Token{Raw: raw, Claims: claims, TTL: ttl, Clamped: clamped}, nil
}

// VerifyToken checks a token's algorithm, signature, issuer, audience,
// and expiry, returning its claims. Expiry yields ErrExpired; every
// other failure yields ErrSignatureInvalid.
func (iss *Issuer) VerifyToken(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return iss.keyring.hmacKey(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(iss.tokenIssuer),
		jwt.WithAudience(iss.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(iss.clock.Now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, fmt.Errorf("token expired at %s: %w",
			time.Unix(claims.ExpiresAt, 0).UTC().Format(time.RFC3339), schema.ErrExpired)
	}
	if err != nil {
		return Claims{}, fmt.Errorf("%v: %w", err, schema.ErrSignatureInvalid)
	}
	return claims, nil
}

// reject audits a refused issuance as a denial and returns err.
func (iss *Issuer) reject(ctx context.Context, action string, identity schema.Identity, err error) error {
	iss.recordFailure(ctx, action, identity, schema.OutcomeDeny, err)
	return err
}

// fail audits an internal issuance failure as an error outcome.
func (iss *Issuer) fail(ctx context.Context, action string, identity schema.Identity, err error) error {
	iss.logger.Error("credential issuance failed", "action", action, "identity", identity.ID, "error", err)
	iss.recordFailure(ctx, action, identity, schema.OutcomeError, err)
	return fmt.Errorf("credential: %w", err)
}

func (iss *Issuer) recordFailure(ctx context.Context, action string, identity schema.Identity, outcome schema.Outcome, err error) {
	iss.recorder.Append(ctx, schema.AuditEvent{
		Kind:      schema.EventCredential,
		Action:    action,
		Actor:     audit.ActorFrom(ctx),
		Target:    identity.ID,
		Namespace: identity.Namespace,
		Outcome:   outcome,
		Reason:    err.Error(),
	})
}

func issuedReason(kind string, ttl time.Duration, clamped bool) string {
	if clamped {
		return fmt.Sprintf("issued %s, ttl clamped to %s", kind, ttl)
	}
	return fmt.Sprintf("issued %s, ttl %s", kind, ttl)
}

func newSerial() (string, error) {
	var serial [16]byte
	if _, err := rand.Read(serial[:]); err != nil {
		return "", fmt.Errorf("generating serial: %w", err)
	}
	return hex.EncodeToString(serial[:]), nil
}
