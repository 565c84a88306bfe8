// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestTrail(t *testing.T) (*Trail, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	return New(Config{Clock: fake}), fake
}

func decisionEvent(namespace string, outcome schema.Outcome) schema.AuditEvent {
	return schema.AuditEvent{
		Kind:      schema.EventDecision,
		Action:    schema.ActionDecisionEvaluate,
		Actor:     "spiffe://dom/ns/" + namespace + "/sa/checkout",
		Target:    "inventory-service:GET",
		Namespace: namespace,
		Outcome:   outcome,
	}
}

func TestAppendAssignsSequenceAndChain(t *testing.T) {
	trail, fake := newTestTrail(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if sequence := trail.Append(ctx, decisionEvent("production", schema.OutcomeAllow)); sequence != uint64(i) {
			t.Fatalf("Append #%d returned sequence %d", i, sequence)
		}
		fake.Advance(time.Second)
	}

	events := trail.Events()
	if !events[0].PreviousHash.IsZero() {
		t.Error("first event does not link to the zero hash")
	}
	for i := 1; i < len(events); i++ {
		if events[i].PreviousHash != events[i-1].Hash {
			t.Errorf("event %d does not link to event %d", events[i].Sequence, events[i-1].Sequence)
		}
	}
	if err := trail.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAppendClampsTimestamps(t *testing.T) {
	trail, fake := newTestTrail(t)
	ctx := context.Background()

	trail.Append(ctx, decisionEvent("production", schema.OutcomeAllow))
	fake.Advance(-time.Minute)
	trail.Append(ctx, decisionEvent("production", schema.OutcomeDeny))

	early := decisionEvent("production", schema.OutcomeDeny)
	early.Timestamp = epoch.Add(-time.Hour)
	trail.Append(ctx, early)

	events := trail.Events()
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp %v precedes event %d timestamp %v",
				events[i].Sequence, events[i].Timestamp, events[i-1].Sequence, events[i-1].Timestamp)
		}
	}
	if !events[2].Timestamp.Equal(epoch) {
		t.Errorf("clamped timestamp = %v, want %v", events[2].Timestamp, epoch)
	}
}

func TestRecentMostRecentFirstAndRestartable(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()
	for i := range 5 {
		event := decisionEvent("production", schema.OutcomeAllow)
		event.Target = fmt.Sprintf("resource-%d:GET", i)
		trail.Append(ctx, event)
	}

	recent := trail.Recent(3)
	var sequences []uint64
	for event := range recent {
		sequences = append(sequences, event.Sequence)
	}
	if !slices.Equal(sequences, []uint64{5, 4, 3}) {
		t.Errorf("Recent(3) sequences = %v, want [5 4 3]", sequences)
	}

	trail.Append(ctx, decisionEvent("production", schema.OutcomeDeny))
	sequences = sequences[:0]
	for event := range recent {
		sequences = append(sequences, event.Sequence)
	}
	if !slices.Equal(sequences, []uint64{6, 5, 4}) {
		t.Errorf("second range of Recent(3) = %v, want [6 5 4]", sequences)
	}

	count := 0
	for range trail.Recent(0) {
		count++
	}
	if count != 6 {
		t.Errorf("Recent(0) yielded %d events, want 6", count)
	}

	for event := range trail.Recent(10) {
		if event.Sequence != 6 {
			t.Errorf("early break yielded sequence %d", event.Sequence)
		}
		break
	}
}

func TestStats(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()

	trail.Append(ctx, decisionEvent("production", schema.OutcomeAllow))
	trail.Append(ctx, decisionEvent("production", schema.OutcomeDeny))
	trail.Append(ctx, decisionEvent("staging", schema.OutcomeDeny))
	trail.Append(ctx, schema.AuditEvent{
		Kind:      schema.EventCredential,
		Action:    schema.ActionTokenIssue,
		Target:    "id-1",
		Namespace: "production",
		Outcome:   schema.OutcomeError,
	})

	all := trail.Stats("")
	if all.Total != 4 || all.AllowCount != 1 || all.DenyCount != 2 || all.ErrorCount != 1 {
		t.Errorf("Stats(\"\") = %+v", all)
	}
	if all.RecentActions[0] != schema.ActionTokenIssue {
		t.Errorf("RecentActions[0] = %q, want %q", all.RecentActions[0], schema.ActionTokenIssue)
	}

	production := trail.Stats("production")
	if production.Total != 3 || production.AllowCount != 1 || production.DenyCount != 1 || production.ErrorCount != 1 {
		t.Errorf("Stats(production) = %+v", production)
	}

	empty := trail.Stats("nowhere")
	if empty.Total != 0 || empty.RecentActions == nil {
		t.Errorf("Stats(nowhere) = %+v", empty)
	}
}

func TestStatsRecentActionsBounded(t *testing.T) {
	trail, _ := newTestTrail(t)
	for range recentActionsLimit + 5 {
		trail.Append(context.Background(), decisionEvent("production", schema.OutcomeAllow))
	}
	if got := len(trail.Stats("").RecentActions); got != recentActionsLimit {
		t.Errorf("len(RecentActions) = %d, want %d", got, recentActionsLimit)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	trail, fake := newTestTrail(t)
	ctx := context.Background()
	for range 4 {
		trail.Append(ctx, decisionEvent("production", schema.OutcomeDeny))
		fake.Advance(time.Second)
	}
	events := trail.Events()

	tests := []struct {
		name   string
		mutate func([]schema.AuditEvent) []schema.AuditEvent
	}{
		{"outcome flipped", func(events []schema.AuditEvent) []schema.AuditEvent {
			events[1].Outcome = schema.OutcomeAllow
			return events
		}},
		{"event removed", func(events []schema.AuditEvent) []schema.AuditEvent {
			return append(events[:1], events[2:]...)
		}},
		{"events swapped", func(events []schema.AuditEvent) []schema.AuditEvent {
			events[1], events[2] = events[2], events[1]
			return events
		}},
		{"timestamp rewritten", func(events []schema.AuditEvent) []schema.AuditEvent {
			events[3].Timestamp = events[3].Timestamp.Add(time.Hour)
			return events
		}},
		{"genesis relinked", func(events []schema.AuditEvent) []schema.AuditEvent {
			events[0].PreviousHash[0] = 1
			return events
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tampered := test.mutate(slices.Clone(events))
			if err := VerifyChain(tampered); !errors.Is(err, ErrChainBroken) {
				t.Errorf("VerifyChain = %v, want ErrChainBroken", err)
			}
		})
	}

	if err := VerifyChain(events[2:]); err != nil {
		t.Errorf("VerifyChain(suffix) = %v, want nil", err)
	}
}

func TestConcurrentAppendKeepsOrder(t *testing.T) {
	trail, _ := newTestTrail(t)
	const writers = 8
	const perWriter = 50

	var waitGroup sync.WaitGroup
	for writer := range writers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for range perWriter {
				event := decisionEvent(fmt.Sprintf("ns-%d", writer), schema.OutcomeAllow)
				trail.Append(context.Background(), event)
			}
		}()
	}
	waitGroup.Wait()

	if trail.Len() != writers*perWriter {
		t.Fatalf("Len = %d, want %d", trail.Len(), writers*perWriter)
	}
	for index, event := range trail.Events() {
		if event.Sequence != uint64(index)+1 {
			t.Fatalf("event at index %d has sequence %d", index, event.Sequence)
		}
	}
	if err := trail.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

type failingSink struct {
	calls int
}

func (sink *failingSink) Write(context.Context, schema.AuditEvent) error {
	sink.calls++
	return errors.New("disk full")
}

func TestSinkFailureDoesNotFailAppend(t *testing.T) {
	sink := &failingSink{}
	trail := New(Config{Clock: clock.Fake(epoch), Sink: sink})

	if sequence := trail.Append(context.Background(), decisionEvent("production", schema.OutcomeAllow)); sequence != 1 {
		t.Fatalf("Append = %d, want 1", sequence)
	}
	if sink.calls != 1 {
		t.Errorf("sink called %d times, want 1", sink.calls)
	}
	if trail.Len() != 1 {
		t.Errorf("Len = %d, want 1", trail.Len())
	}
}

func TestRestoreContinuesChain(t *testing.T) {
	original, _ := newTestTrail(t)
	ctx := context.Background()
	original.Append(ctx, decisionEvent("production", schema.OutcomeAllow))
	original.Append(ctx, decisionEvent("production", schema.OutcomeDeny))

	restored, _ := newTestTrail(t)
	if err := restored.Restore(original.Events()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if sequence := restored.Append(ctx, decisionEvent("production", schema.OutcomeAllow)); sequence != 3 {
		t.Errorf("Append after Restore = %d, want 3", sequence)
	}
	if err := restored.Verify(); err != nil {
		t.Errorf("Verify after Restore: %v", err)
	}

	if err := restored.Restore(original.Events()); err == nil {
		t.Error("Restore into a non-empty trail succeeded")
	}
	if err := New(Config{}).Restore(original.Events()[1:]); err == nil {
		t.Error("Restore of a suffix succeeded")
	}
}
