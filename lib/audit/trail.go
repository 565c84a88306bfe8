// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/trustplane/lib/clock"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Recorder is the append side of the trail, as seen by the components
// that produce events.
type Recorder interface {
	Append(ctx context.Context, event schema.AuditEvent) uint64
}

// Sink durably stores events in append order. Write is called with
// the trail's ordering lock held, so implementations see events one at
// a time in sequence order.
type Sink interface {
	Write(ctx context.Context, event schema.AuditEvent) error
}

// recentActionsLimit bounds Stats.RecentActions.
const recentActionsLimit = 10

// Config holds the dependencies of a Trail. All fields are optional.
type Config struct {
	Clock  clock.Clock
	Logger *slog.Logger
	Sink   Sink
}

// Trail is the in-memory audit trail. It is safe for concurrent use.
type Trail struct {
	clock  clock.Clock
	logger *slog.Logger
	sink   Sink

	mu     sync.Mutex
	events []schema.AuditEvent
}

// New creates an empty trail.
func New(cfg Config) *Trail {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trail{
		clock:  clock.Or(cfg.Clock),
		logger: logger,
		sink:   cfg.Sink,
	}
}

// Append stores event and returns its sequence number. Sequence,
// PreviousHash, and Hash are overwritten. A zero Timestamp is replaced
// by the trail clock's time, and any timestamp earlier than the
// previous event's is raised to it.
func (tr *Trail) Append(ctx context.Context, event schema.AuditEvent) uint64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = tr.clock.Now()
	}
	event.Timestamp = event.Timestamp.UTC()

	var previous schema.Hash
	if count := len(tr.events); count > 0 {
		last := tr.events[count-1]
		previous = last.Hash
		if event.Timestamp.Before(last.Timestamp) {
			event.Timestamp = last.Timestamp
		}
	}

	event.Sequence = uint64(len(tr.events)) + 1
	event.PreviousHash = previous
	hash, err := HashEvent(previous, event)
	if err != nil {
		// AuditEvent holds only concrete scalar types, so encoding
		// cannot fail short of a broken codec.
		panic(err)
	}
	event.Hash = hash
	tr.events = append(tr.events, event)

	if tr.sink != nil {
		// The event is already in the chain; a cancelled caller must not
		// leave a gap in the persisted copy.
		if err := tr.sink.Write(context.WithoutCancel(ctx), event); err != nil {
			tr.logger.Error("audit sink write failed",
				"sequence", event.Sequence,
				"action", event.Action,
				"error", err,
			)
		}
	}
	return event.Sequence
}

// Restore loads a previously persisted chain into an empty trail so
// that new events continue it. The events are verified first and are
// not written to the sink.
func (tr *Trail) Restore(events []schema.AuditEvent) error {
	if len(events) > 0 && events[0].Sequence != 1 {
		return fmt.Errorf("audit: restore must start at sequence 1, got %d", events[0].Sequence)
	}
	if err := VerifyChain(events); err != nil {
		return err
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.events) != 0 {
		return errors.New("audit: restore into a non-empty trail")
	}
	tr.events = append([]schema.AuditEvent(nil), events...)
	return nil
}

// Len returns the number of appended events.
func (tr *Trail) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.events)
}

// Events returns a copy of every event in append order.
func (tr *Trail) Events() []schema.AuditEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]schema.AuditEvent(nil), tr.events...)
}

// Recent yields up to limit events, most recent first. A limit of zero
// or less yields every event. Each range takes a fresh snapshot, so
// the sequence can be ranged over again to observe newer events.
func (tr *Trail) Recent(limit int) iter.Seq[schema.AuditEvent] {
	return func(yield func(schema.AuditEvent) bool) {
		tr.mu.Lock()
		start := 0
		if limit > 0 && len(tr.events) > limit {
			start = len(tr.events) - limit
		}
		snapshot := append([]schema.AuditEvent(nil), tr.events[start:]...)
		tr.mu.Unlock()

		for index := len(snapshot) - 1; index >= 0; index-- {
			if !yield(snapshot[index]) {
				return
			}
		}
	}
}

// Stats summarizes stored events.
type Stats struct {
	Total      int `json:"total"`
	AllowCount int `json:"allow_count"`
	DenyCount  int `json:"deny_count"`
	ErrorCount int `json:"error_count"`

	// RecentActions holds the action names of the latest events, most
	// recent first.
	RecentActions []string `json:"recent_actions"`
}

// Stats recomputes counters over stored events. An empty namespace
// counts every event.
func (tr *Trail) Stats(namespace string) Stats {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	stats := Stats{RecentActions: []string{}}
	for index := len(tr.events) - 1; index >= 0; index-- {
		event := tr.events[index]
		if namespace != "" && event.Namespace != namespace {
			continue
		}
		stats.Total++
		switch event.Outcome {
		case schema.OutcomeAllow:
			stats.AllowCount++
		case schema.OutcomeDeny:
			stats.DenyCount++
		case schema.OutcomeError:
			stats.ErrorCount++
		}
		if len(stats.RecentActions) < recentActionsLimit {
			stats.RecentActions = append(stats.RecentActions, event.Action)
		}
	}
	return stats
}

// Verify checks the integrity of the stored chain.
func (tr *Trail) Verify() error {
	return VerifyChain(tr.Events())
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Append(context.Context, schema.AuditEvent) uint64 { return 0 }
