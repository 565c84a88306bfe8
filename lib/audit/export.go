// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Compression selects the stream compression of an export.
type Compression uint8

const (
	// CompressionNone writes the raw CBOR sequence.
	CompressionNone Compression = iota

	// CompressionLZ4 wraps the sequence in an LZ4 frame. Fast, for
	// routine snapshots.
	CompressionLZ4

	// CompressionZstd wraps the sequence in a zstd stream. Better
	// ratio for archival.
	CompressionZstd
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("audit: unknown compression %q", name)
	}
}

// Export writes events to w as a CBOR sequence.
func Export(w io.Writer, events []schema.AuditEvent, compression Compression) error {
	var (
		stream io.Writer = w
		closer io.Closer
	)
	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		writer := lz4.NewWriter(w)
		stream, closer = writer, writer
	case CompressionZstd:
		writer, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("audit: zstd writer: %w", err)
		}
		stream, closer = writer, writer
	default:
		return fmt.Errorf("audit: unsupported compression %s", compression)
	}

	encoder := codec.NewEncoder(stream)
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			if closer != nil {
				closer.Close()
			}
			return fmt.Errorf("audit: exporting event %d: %w", event.Sequence, err)
		}
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("audit: finishing %s stream: %w", compression, err)
		}
	}
	return nil
}

// ReadExport reads an export written by Export. The chain is not
// verified; pass the result to VerifyChain.
func ReadExport(r io.Reader, compression Compression) ([]schema.AuditEvent, error) {
	var stream io.Reader = r
	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		stream = lz4.NewReader(r)
	case CompressionZstd:
		reader, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("audit: zstd reader: %w", err)
		}
		defer reader.Close()
		stream = reader
	default:
		return nil, fmt.Errorf("audit: unsupported compression %s", compression)
	}

	decoder := codec.NewDecoder(stream)
	var events []schema.AuditEvent
	for {
		var event schema.AuditEvent
		err := decoder.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("audit: reading event %d of export: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
}
