// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements the append-only, hash-chained audit trail.
//
// A [Trail] is the single ordering point for every identity, credential,
// policy, and decision event. [Trail.Append] assigns the next sequence
// number, clamps the timestamp so that trail order is non-decreasing
// in time, and links the event into a BLAKE3 keyed hash chain:
//
//	Hash = BLAKE3-keyed(chainKey, PreviousHash || CBOR(event without Hash))
//
// Any modification, removal, or reordering of a stored event breaks
// the chain, which [VerifyChain] detects.
//
// Events can additionally be written to a durable [Sink] inside the
// ordering point. [SQLiteSink] stores them in a SQLite database opened
// through lib/sqlitepool. Sink failures are logged and never fail the
// append: the in-memory trail remains authoritative for the process.
//
// [Export] and [ReadExport] move events as a CBOR sequence, optionally
// compressed with LZ4 or zstd.
package audit
