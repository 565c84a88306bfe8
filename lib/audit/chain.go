// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// ErrChainBroken is returned by VerifyChain when an event's sequence,
// link, hash, or timestamp is inconsistent with its predecessor.
var ErrChainBroken = errors.New("audit: hash chain broken")

// chainDomainKey is "trustplane.audit.chain" in ASCII, zero-padded to
// the 32 bytes BLAKE3 keyed mode requires. Changing it invalidates
// every stored chain.
var chainDomainKey = [32]byte{
	't', 'r', 'u', 's', 't', 'p', 'l', 'a', 'n', 'e', '.', 'a', 'u', 'd', 'i', 't',
	'.', 'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ChainPayload returns the deterministic CBOR encoding of event that
// the chain hash covers: every field except Hash itself.
func ChainPayload(event schema.AuditEvent) ([]byte, error) {
	event.Hash = schema.Hash{}
	data, err := codec.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("audit: encoding event %d: %w", event.Sequence, err)
	}
	return data, nil
}

// HashEvent computes the chain hash of event linked to previous.
// PreviousHash is taken from the event as stored.
func HashEvent(previous schema.Hash, event schema.AuditEvent) (schema.Hash, error) {
	data, err := ChainPayload(event)
	if err != nil {
		return schema.Hash{}, err
	}

	hasher, err := blake3.NewKeyed(chainDomainKey[:])
	if err != nil {
		panic("audit: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(previous[:])
	hasher.Write(data)

	var hash schema.Hash
	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}

// VerifyChain checks that events form an unbroken chain: sequence
// numbers are contiguous, each event links to its predecessor's hash
// (the first event of a full trail links to the zero hash), every hash
// recomputes, and timestamps never decrease.
//
// events may be a suffix of a longer trail; in that case the first
// event's PreviousHash is trusted as the anchor.
func VerifyChain(events []schema.AuditEvent) error {
	for index, event := range events {
		if index == 0 {
			if event.Sequence == 1 && !event.PreviousHash.IsZero() {
				return fmt.Errorf("%w: event 1 does not link to the genesis hash", ErrChainBroken)
			}
		} else {
			previous := events[index-1]
			if event.Sequence != previous.Sequence+1 {
				return fmt.Errorf("%w: sequence %d follows %d", ErrChainBroken, event.Sequence, previous.Sequence)
			}
			if event.PreviousHash != previous.Hash {
				return fmt.Errorf("%w: event %d does not link to event %d", ErrChainBroken, event.Sequence, previous.Sequence)
			}
			if event.Timestamp.Before(previous.Timestamp) {
				return fmt.Errorf("%w: event %d is timestamped before event %d", ErrChainBroken, event.Sequence, previous.Sequence)
			}
		}

		expected, err := HashEvent(event.PreviousHash, event)
		if err != nil {
			return err
		}
		if expected != event.Hash {
			return fmt.Errorf("%w: event %d hash mismatch", ErrChainBroken, event.Sequence)
		}
	}
	return nil
}
