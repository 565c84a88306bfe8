// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the policy store and the matching
// primitives the decision engine evaluates.
//
// A policy carries three pattern lists (subjects, resources, actions),
// a minimum trust level, and optional deny rules. Subject and resource
// patterns follow a small grammar, checked when the policy is created:
//
//	*                          matches everything
//	spiffe://dom/ns/prod/*     matches "spiffe://dom/ns/prod/" plus at least one character
//	spiffe://dom/ns/prod/sa/checkout*
//	                           matches anything starting with the text before *
//	inventory-service          exact match
//
// A * anywhere else, or more than one *, is rejected. Actions are
// either exact tokens or *. An empty list matches everything; the
// validation report flags such policies as overly broad.
//
// Deny rules are compiled at creation too. Expression rules use
// expr-lang with the variables subject, resource, action, namespace,
// trust_level (0 for untrusted through 4 for critical), kind, and
// context.
//
// The store hands the engine immutable [Compiled] snapshots of active
// policies in creation order, so evaluation never holds the store lock
// while matching.
package policy
