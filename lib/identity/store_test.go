// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *audit.Trail, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	trail := audit.New(audit.Config{Clock: fake})
	store, err := New(Config{TrustDomain: "dom", Clock: fake, Recorder: trail})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, trail, fake
}

func mustRegister(t *testing.T, store *Store, request RegisterRequest) schema.Identity {
	t.Helper()
	identity, err := store.Register(context.Background(), request)
	if err != nil {
		t.Fatalf("Register(%+v): %v", request, err)
	}
	return identity
}

func trustPtr(level schema.TrustLevel) *schema.TrustLevel { return &level }

func TestRegisterStructuredIDs(t *testing.T) {
	store, trail, _ := newTestStore(t)

	tests := []struct {
		request    RegisterRequest
		structured string
		trust      schema.TrustLevel
	}{
		{RegisterRequest{Name: "checkout-service", Kind: schema.KindWorkload, Namespace: "production"},
			"spiffe://dom/ns/production/sa/checkout-service", schema.TrustLow},
		{RegisterRequest{Name: "billing", Kind: schema.KindServiceAccount, Namespace: "finance"},
			"spiffe://dom/ns/finance/sa/billing", schema.TrustLow},
		{RegisterRequest{Name: "triage-bot", Kind: schema.KindAIAgent, Namespace: "support"},
			"spiffe://dom/ns/support/agent/triage-bot", schema.TrustLow},
		{RegisterRequest{Name: "Ada", Kind: schema.KindHuman, Namespace: "engineering", Contact: "ada@example.com"},
			"", schema.TrustUntrusted},
	}
	for _, test := range tests {
		identity := mustRegister(t, store, test.request)
		if identity.StructuredID != test.structured {
			t.Errorf("%s: StructuredID = %q, want %q", test.request.Name, identity.StructuredID, test.structured)
		}
		if identity.TrustLevel != test.trust {
			t.Errorf("%s: TrustLevel = %s, want %s", test.request.Name, identity.TrustLevel, test.trust)
		}
		if !identity.Active || identity.ID == "" || !identity.CreatedAt.Equal(epoch) {
			t.Errorf("%s: unexpected identity %+v", test.request.Name, identity)
		}
	}
	if trail.Len() != len(tests) {
		t.Errorf("audit events = %d, want %d", trail.Len(), len(tests))
	}
}

func TestRegisterHierarchicalNamespace(t *testing.T) {
	store, _, _ := newTestStore(t)

	tests := []struct {
		request    RegisterRequest
		structured string
	}{
		{RegisterRequest{Name: "checkout", Kind: schema.KindWorkload, Namespace: "production/payments"},
			"spiffe://dom/ns/production/payments/sa/checkout"},
		{RegisterRequest{Name: "summarizer", Kind: schema.KindAIAgent, Namespace: "ai/platform/batch"},
			"spiffe://dom/ns/ai/platform/batch/agent/summarizer"},
		{RegisterRequest{Name: "nightly report", Kind: schema.KindServiceAccount, Namespace: "finance"},
			"spiffe://dom/ns/finance/sa/nightly report"},
		{RegisterRequest{Name: "Grace", Kind: schema.KindHuman, Namespace: "eng/platform"},
			""},
	}
	for _, test := range tests {
		identity := mustRegister(t, store, test.request)
		if identity.StructuredID != test.structured {
			t.Errorf("%s: StructuredID = %q, want %q", test.request.Name, identity.StructuredID, test.structured)
		}
		if identity.Namespace != test.request.Namespace {
			t.Errorf("%s: Namespace = %q, want %q", test.request.Name, identity.Namespace, test.request.Namespace)
		}
		if test.structured == "" {
			continue
		}
		resolved, ok := store.Resolve(test.structured)
		if !ok || resolved.ID != identity.ID {
			t.Errorf("Resolve(%q) = %+v, %v", test.structured, resolved, ok)
		}
		if err := store.VerifyTrustDomain(test.structured); err != nil {
			t.Errorf("VerifyTrustDomain(%q): %v", test.structured, err)
		}
	}
}

func TestRegisterCallerTrustAndConfigDefaults(t *testing.T) {
	store, err := New(Config{
		TrustDomain:  "dom",
		DefaultTrust: map[schema.IdentityKind]schema.TrustLevel{schema.KindWorkload: schema.TrustMedium},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	workload := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})
	if workload.TrustLevel != schema.TrustMedium {
		t.Errorf("configured default = %s, want medium", workload.TrustLevel)
	}
	pinned := mustRegister(t, store, RegisterRequest{Name: "db", Kind: schema.KindWorkload, Namespace: "production", TrustLevel: trustPtr(schema.TrustHigh)})
	if pinned.TrustLevel != schema.TrustHigh {
		t.Errorf("caller-supplied trust = %s, want high", pinned.TrustLevel)
	}
}

func TestRegisterValidation(t *testing.T) {
	store, trail, _ := newTestStore(t)
	tests := []struct {
		name    string
		request RegisterRequest
	}{
		{"empty name", RegisterRequest{Kind: schema.KindWorkload, Namespace: "production"}},
		{"empty namespace", RegisterRequest{Name: "api", Kind: schema.KindWorkload}},
		{"unknown kind", RegisterRequest{Name: "api", Kind: "robot", Namespace: "production"}},
		{"contact on workload", RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production", Contact: "a@b"}},
		{"invalid trust", RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production", TrustLevel: trustPtr(9)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := store.Register(context.Background(), test.request); !errors.Is(err, schema.ErrValidation) {
				t.Errorf("Register error = %v, want ErrValidation", err)
			}
		})
	}
	if trail.Len() != 0 {
		t.Errorf("validation failures produced %d audit events", trail.Len())
	}
}

func TestRegisterDuplicates(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	first := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})
	if _, err := store.Register(ctx, RegisterRequest{Name: "api", Kind: schema.KindServiceAccount, Namespace: "production"}); !errors.Is(err, schema.ErrAlreadyExists) {
		t.Errorf("duplicate structured id error = %v, want ErrAlreadyExists", err)
	}

	if _, err := store.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := store.Register(ctx, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"}); !errors.Is(err, schema.ErrAlreadyExists) {
		t.Errorf("structured id of a deactivated identity was reused: %v", err)
	}

	mustRegister(t, store, RegisterRequest{Name: "Ada", Kind: schema.KindHuman, Namespace: "eng", Contact: "ada@example.com"})
	if _, err := store.Register(ctx, RegisterRequest{Name: "Ada L", Kind: schema.KindHuman, Namespace: "eng", Contact: "ada@example.com"}); !errors.Is(err, schema.ErrAlreadyExists) {
		t.Errorf("duplicate contact error = %v, want ErrAlreadyExists", err)
	}
	mustRegister(t, store, RegisterRequest{Name: "Ada", Kind: schema.KindHuman, Namespace: "eng"})
}

func TestGetAndResolve(t *testing.T) {
	store, _, _ := newTestStore(t)
	workload := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})
	human := mustRegister(t, store, RegisterRequest{Name: "Ada", Kind: schema.KindHuman, Namespace: "eng", Contact: "ada@example.com"})

	if got, err := store.Get(workload.ID); err != nil || got.ID != workload.ID {
		t.Errorf("Get = %+v, %v", got, err)
	}
	if _, err := store.Get("missing"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	for _, subject := range []string{workload.StructuredID, workload.ID} {
		if got, ok := store.Resolve(subject); !ok || got.ID != workload.ID {
			t.Errorf("Resolve(%q) = %+v, %v", subject, got, ok)
		}
	}
	for _, subject := range []string{human.ID, "ada@example.com"} {
		if got, ok := store.Resolve(subject); !ok || got.ID != human.ID {
			t.Errorf("Resolve(%q) = %+v, %v", subject, got, ok)
		}
	}
	if _, ok := store.Resolve("spiffe://dom/ns/production/sa/nobody"); ok {
		t.Error("Resolve of an unknown subject succeeded")
	}
}

func TestListFiltersAndRestarts(t *testing.T) {
	store, _, _ := newTestStore(t)
	mustRegister(t, store, RegisterRequest{Name: "a", Kind: schema.KindWorkload, Namespace: "production"})
	mustRegister(t, store, RegisterRequest{Name: "b", Kind: schema.KindAIAgent, Namespace: "production"})
	mustRegister(t, store, RegisterRequest{Name: "c", Kind: schema.KindWorkload, Namespace: "staging"})

	names := func(filter Filter) []string {
		var result []string
		for identity := range store.List(filter) {
			result = append(result, identity.Name)
		}
		return result
	}

	if got := names(Filter{}); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("List() = %v", got)
	}
	if got := names(Filter{Kind: schema.KindWorkload}); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("List(workload) = %v", got)
	}
	if got := names(Filter{Namespace: "production"}); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("List(production) = %v", got)
	}

	sequence := store.List(Filter{Namespace: "staging"})
	mustRegister(t, store, RegisterRequest{Name: "d", Kind: schema.KindWorkload, Namespace: "staging"})
	var restarted []string
	for identity := range sequence {
		restarted = append(restarted, identity.Name)
	}
	if !slices.Equal(restarted, []string{"c", "d"}) {
		t.Errorf("restarted List = %v, want [c d]", restarted)
	}
}

func TestPromoteIsStrictlyMonotonic(t *testing.T) {
	store, trail, _ := newTestStore(t)
	ctx := context.Background()
	identity := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})

	for _, level := range []schema.TrustLevel{schema.TrustUntrusted, schema.TrustLow} {
		if _, err := store.Promote(ctx, identity.ID, level); !errors.Is(err, schema.ErrInvalidTransition) {
			t.Errorf("Promote(low -> %s) error = %v, want ErrInvalidTransition", level, err)
		}
	}

	promoted, err := store.Promote(ctx, identity.ID, schema.TrustHigh)
	if err != nil {
		t.Fatalf("Promote(high): %v", err)
	}
	if promoted.TrustLevel != schema.TrustHigh {
		t.Errorf("TrustLevel = %s, want high", promoted.TrustLevel)
	}
	if _, err := store.Promote(ctx, identity.ID, schema.TrustMedium); !errors.Is(err, schema.ErrInvalidTransition) {
		t.Errorf("demotion error = %v, want ErrInvalidTransition", err)
	}
	if got, _ := store.Get(identity.ID); got.TrustLevel != schema.TrustHigh {
		t.Errorf("failed demotion changed trust to %s", got.TrustLevel)
	}

	if _, err := store.Promote(ctx, "missing", schema.TrustHigh); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Promote(missing) error = %v, want ErrNotFound", err)
	}

	stats := trail.Stats("production")
	// register + 2 rejected + 1 promotion + 1 rejected demotion
	if stats.Total != 5 || stats.DenyCount != 3 {
		t.Errorf("audit stats = %+v", stats)
	}
}

func TestPromoteInactive(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	identity := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})
	if _, err := store.Deactivate(ctx, identity.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := store.Promote(ctx, identity.ID, schema.TrustCritical); !errors.Is(err, schema.ErrIdentityInactive) {
		t.Errorf("Promote(inactive) error = %v, want ErrIdentityInactive", err)
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	store, trail, _ := newTestStore(t)
	ctx := context.Background()
	identity := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})

	for range 2 {
		deactivated, err := store.Deactivate(ctx, identity.ID)
		if err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		if deactivated.Active {
			t.Error("identity still active")
		}
	}
	if _, err := store.Deactivate(ctx, "missing"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Deactivate(missing) error = %v, want ErrNotFound", err)
	}
	if trail.Len() != 3 {
		t.Errorf("audit events = %d, want 3", trail.Len())
	}
	if resolved, ok := store.Resolve(identity.StructuredID); !ok || resolved.Active {
		t.Errorf("Resolve after deactivate = %+v, %v", resolved, ok)
	}
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	store, trail, fake := newTestStore(t)
	identity := mustRegister(t, store, RegisterRequest{Name: "api", Kind: schema.KindWorkload, Namespace: "production"})

	fake.Advance(5 * time.Minute)
	store.Touch(identity.ID)
	store.Touch("missing")

	got, _ := store.Get(identity.ID)
	if !got.LastSeen.Equal(epoch.Add(5 * time.Minute)) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, epoch.Add(5*time.Minute))
	}
	if trail.Len() != 1 {
		t.Errorf("Touch produced audit events: %d", trail.Len())
	}
}

func TestVerifyTrustDomain(t *testing.T) {
	store, _, _ := newTestStore(t)
	if err := store.VerifyTrustDomain("spiffe://dom/ns/production/sa/api"); err != nil {
		t.Errorf("in-domain subject: %v", err)
	}
	for _, subject := range []string{"spiffe://other/ns/production/sa/api", "not a uri", "https://dom/ns/x", "spiffe://dom/ns/production/sa/never registered"} {
		if err := store.VerifyTrustDomain(subject); !errors.Is(err, schema.ErrValidation) {
			t.Errorf("VerifyTrustDomain(%q) = %v, want ErrValidation", subject, err)
		}
	}
}

func TestNewRejectsBadTrustDomain(t *testing.T) {
	if _, err := New(Config{TrustDomain: "Not A Domain"}); !errors.Is(err, schema.ErrValidation) {
		t.Errorf("New error = %v, want ErrValidation", err)
	}
}
