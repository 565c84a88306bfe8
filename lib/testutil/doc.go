// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for trustplane
// packages: channel helpers with timeouts for concurrency tests and
// file fixtures.
package testutil
