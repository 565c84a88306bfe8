// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import "context"

// SystemActor is recorded when no actor is attached to the context.
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the identity of whoever is driving an operation
// (an operator, a bundle file, the CLI user) to ctx. Components record
// it as AuditEvent.Actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor attached to ctx, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
