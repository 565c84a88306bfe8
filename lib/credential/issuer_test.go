// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	issuer  *Issuer
	keyring *Keyring
	trail   *audit.Trail
	clock   *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	keyring, err := GenerateKeyring()
	if err != nil {
		t.Fatalf("GenerateKeyring: %v", err)
	}
	t.Cleanup(func() { keyring.Close() })

	fake := clock.Fake(epoch)
	trail := audit.New(audit.Config{Clock: fake})
	issuer, err := NewIssuer(Config{
		TrustDomain: "dom",
		Keyring:     keyring,
		Clock:       fake,
		Recorder:    trail,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return fixture{issuer: issuer, keyring: keyring, trail: trail, clock: fake}
}

func testIdentity(kind schema.IdentityKind) schema.Identity {
	identity := schema.Identity{
		ID:         "0b7c4f4e-7f59-4d8e-9b0e-3f1f5b2f9a10",
		Name:       "checkout-service",
		Kind:       kind,
		Namespace:  "production",
		TrustLevel: schema.TrustHigh,
		Active:     true,
	}
	switch kind {
	case schema.KindHuman:
		identity.Name = "Ada"
		identity.Contact = "ada@example.com"
	case schema.KindAIAgent:
		identity.StructuredID = "spiffe://dom/ns/production/agent/checkout-service"
	default:
		identity.StructuredID = "spiffe://dom/ns/production/sa/checkout-service"
	}
	return identity
}

func TestTokenRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, kind := range schema.IdentityKinds {
		ceiling := TokenCeilings[kind]
		for _, ttl := range []time.Duration{MinTTL, 17 * time.Minute, ceiling} {
			identity := testIdentity(kind)
			token, err := f.issuer.IssueToken(ctx, identity, ttl)
			if err != nil {
				t.Fatalf("IssueToken(%s, %s): %v", kind, ttl, err)
			}
			if token.TTL != ttl || token.Clamped {
				t.Errorf("%s/%s: TTL = %s, clamped = %v", kind, ttl, token.TTL, token.Clamped)
			}
			claims, err := f.issuer.VerifyToken(token.Raw)
			if err != nil {
				t.Fatalf("VerifyToken(%s, %s): %v", kind, ttl, err)
			}
			if claims != token.Claims {
				t.Errorf("%s/%s: verified claims %+v differ from issued %+v", kind, ttl, claims, token.Claims)
			}
		}
	}
}

func TestTokenClaimsMirrorIdentity(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(schema.KindWorkload)
	token, err := f.issuer.IssueToken(context.Background(), identity, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims := token.Claims
	if claims.Subject != identity.ID || claims.Issuer != DefaultIssuer || claims.Audience != DefaultAudience {
		t.Errorf("registered claims = %+v", claims)
	}
	if claims.Name != identity.Name || claims.Namespace != identity.Namespace || claims.Kind != identity.Kind ||
		claims.TrustLevel != identity.TrustLevel || claims.StructuredID != identity.StructuredID {
		t.Errorf("identity claims = %+v", claims)
	}
	if claims.IssuedAt != epoch.Unix() || claims.ExpiresAt != epoch.Add(time.Hour).Unix() {
		t.Errorf("iat/exp = %d/%d", claims.IssuedAt, claims.ExpiresAt)
	}
	if claims.ID == "" {
		t.Error("jti is empty")
	}
	if !token.ExpiresAt().Equal(epoch.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", token.ExpiresAt())
	}
}

func TestTokenClampedToCeiling(t *testing.T) {
	f := newFixture(t)
	token, err := f.issuer.IssueToken(context.Background(), testIdentity(schema.KindHuman), 72*time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token.TTL != 8*time.Hour || !token.Clamped {
		t.Errorf("TTL = %s, clamped = %v; want 8h, true", token.TTL, token.Clamped)
	}
}

func TestTokenExpiry(t *testing.T) {
	f := newFixture(t)
	token, err := f.issuer.IssueToken(context.Background(), testIdentity(schema.KindWorkload), 5*time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	f.clock.Advance(5*time.Minute - time.Second)
	if _, err := f.issuer.VerifyToken(token.Raw); err != nil {
		t.Fatalf("VerifyToken one second before expiry: %v", err)
	}

	f.clock.Advance(time.Second)
	if _, err := f.issuer.VerifyToken(token.Raw); !errors.Is(err, schema.ErrExpired) {
		t.Errorf("VerifyToken at exp = %v, want ErrExpired", err)
	}
}

func TestTokenRejections(t *testing.T) {
	f := newFixture(t)
	token, err := f.issuer.IssueToken(context.Background(), testIdentity(schema.KindAIAgent), 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other := newFixture(t)
	foreign, err := other.issuer.IssueToken(context.Background(), testIdentity(schema.KindAIAgent), 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	otherAudience, err := NewIssuer(Config{TrustDomain: "dom", Keyring: f.keyring, Audience: "elsewhere", Clock: f.clock})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	misdirected, err := otherAudience.IssueToken(context.Background(), testIdentity(schema.KindAIAgent), 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, token.Claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	parts := strings.Split(token.Raw, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := map[string]string{
		"tampered signature": tampered,
		"foreign key":        foreign.Raw,
		"wrong audience":     misdirected.Raw,
		"alg none":           unsigned,
		"garbage":            "not.a.token",
		"empty":              "",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := f.issuer.VerifyToken(raw); !errors.Is(err, schema.ErrSignatureInvalid) {
				t.Errorf("VerifyToken = %v, want ErrSignatureInvalid", err)
			}
		})
	}
}

func TestDocumentIssueAndVerify(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(schema.KindWorkload)

	document, err := f.issuer.IssueDocument(context.Background(), identity, 30*time.Minute)
	if err != nil {
		t.Fatalf("IssueDocument: %v", err)
	}
	if document.Subject != identity.StructuredID || document.Issuer != "spiffe://dom" || document.IdentityID != identity.ID {
		t.Errorf("document = %+v", document)
	}
	if !document.ExpiresAt.After(document.IssuedAt) || document.ExpiresAt.Sub(document.IssuedAt) != 30*time.Minute {
		t.Errorf("validity %v .. %v", document.IssuedAt, document.ExpiresAt)
	}
	if len(document.Serial) != 32 {
		t.Errorf("serial %q is not 128 bits of hex", document.Serial)
	}
	if document.Bundle.KeyID != f.keyring.KeyID() || document.Bundle.TrustDomain != "dom" {
		t.Errorf("bundle = %+v", document.Bundle)
	}
	if err := f.issuer.VerifyDocument(document); err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}

	forged := document
	forged.Subject = "spiffe://dom/ns/production/sa/admin"
	if err := f.issuer.VerifyDocument(forged); !errors.Is(err, schema.ErrSignatureInvalid) {
		t.Errorf("forged subject: %v, want ErrSignatureInvalid", err)
	}
	extended := document
	extended.ExpiresAt = extended.ExpiresAt.Add(time.Hour)
	if err := f.issuer.VerifyDocument(extended); !errors.Is(err, schema.ErrSignatureInvalid) {
		t.Errorf("extended expiry: %v, want ErrSignatureInvalid", err)
	}

	f.clock.Advance(30 * time.Minute)
	if err := f.issuer.VerifyDocument(document); !errors.Is(err, schema.ErrExpired) {
		t.Errorf("expired document: %v, want ErrExpired", err)
	}
}

func TestDocumentSerialsUnique(t *testing.T) {
	f := newFixture(t)
	seen := make(map[string]bool)
	for range 100 {
		document, err := f.issuer.IssueDocument(context.Background(), testIdentity(schema.KindServiceAccount), 0)
		if err != nil {
			t.Fatalf("IssueDocument: %v", err)
		}
		if seen[document.Serial] {
			t.Fatalf("duplicate serial %s", document.Serial)
		}
		seen[document.Serial] = true
	}
}

func TestDocumentCeilings(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		kind schema.IdentityKind
		want time.Duration
	}{
		{schema.KindWorkload, time.Hour},
		{schema.KindServiceAccount, time.Hour},
		{schema.KindAIAgent, 4 * time.Hour},
	}
	for _, test := range tests {
		document, err := f.issuer.IssueDocument(context.Background(), testIdentity(test.kind), 48*time.Hour)
		if err != nil {
			t.Fatalf("IssueDocument(%s): %v", test.kind, err)
		}
		if document.TTL != test.want || !document.Clamped {
			t.Errorf("%s: TTL = %s, clamped = %v; want %s, true", test.kind, document.TTL, document.Clamped, test.want)
		}
	}
}

func TestHumansCannotHoldDocuments(t *testing.T) {
	f := newFixture(t)
	if _, err := f.issuer.IssueDocument(context.Background(), testIdentity(schema.KindHuman), 0); !errors.Is(err, schema.ErrUnsupportedKind) {
		t.Errorf("IssueDocument(human) = %v, want ErrUnsupportedKind", err)
	}
}

func TestInactiveIdentityGetsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, kind := range schema.IdentityKinds {
		identity := testIdentity(kind)
		identity.Active = false
		if _, err := f.issuer.IssueDocument(ctx, identity, time.Minute); !errors.Is(err, schema.ErrIdentityInactive) {
			t.Errorf("IssueDocument(inactive %s) = %v, want ErrIdentityInactive", kind, err)
		}
		if _, err := f.issuer.IssueToken(ctx, identity, time.Minute); !errors.Is(err, schema.ErrIdentityInactive) {
			t.Errorf("IssueToken(inactive %s) = %v, want ErrIdentityInactive", kind, err)
		}
	}
}

func TestIssuanceIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithActor(context.Background(), "operator")

	document, err := f.issuer.IssueDocument(ctx, testIdentity(schema.KindWorkload), 0)
	if err != nil {
		t.Fatalf("IssueDocument: %v", err)
	}
	token, err := f.issuer.IssueToken(ctx, testIdentity(schema.KindWorkload), 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	f.issuer.IssueDocument(ctx, testIdentity(schema.KindHuman), 0)
	if _, err := f.issuer.VerifyToken(token.Raw); err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	events := f.trail.Events()
	if len(events) != 3 {
		t.Fatalf("audit events = %d, want 3 (verification is not audited)", len(events))
	}
	if events[0].CredentialID != document.Serial || events[0].Action != schema.ActionDocumentIssue || events[0].Actor != "operator" {
		t.Errorf("document event = %+v", events[0])
	}
	if events[1].CredentialID != token.Claims.ID || events[1].Outcome != schema.OutcomeAllow {
		t.Errorf("token event = %+v", events[1])
	}
	if events[2].Outcome != schema.OutcomeDeny {
		t.Errorf("rejected issuance event = %+v", events[2])
	}
}
