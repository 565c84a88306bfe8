// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorization implements the policy decision engine. It
// answers whether a subject may perform an action on a resource,
// given the current identity records and active policies.
//
// # Evaluation
//
// Evaluation is zero-trust and fails closed:
//
//  1. A request missing subject, resource, or action is rejected with
//     [schema.ErrValidation] before evaluation and is not audited.
//  2. The subject is resolved to an identity (structured ID, identity
//     ID, or human contact). An unknown or inactive subject is denied.
//  3. Active policies for the request namespace and the global
//     namespace are scanned in creation order. A policy applies when
//     its subject, resource, and action patterns all match and the
//     identity's trust level is at least the policy minimum.
//  4. An applicable policy's deny rules run next. The first that
//     triggers ends the scan with a deny naming the policy and rule.
//     Otherwise the policy allows and the scan ends.
//  5. When nothing applies the request is denied.
//
// Every evaluated request produces exactly one audit event, appended
// before Evaluate returns. Evaluation holds only read locks on the
// stores and never waits for another evaluation.
//
// # Explain
//
// Explain runs the same evaluation and reports how each candidate
// policy fared, without producing a decision or an audit event. It
// backs "trustplane explain" for debugging policies.
package authorization
