// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/schema"
	"github.com/bureau-foundation/trustplane/lib/sqlitepool"
)

// SQLiteSchema is the DDL for the audit table. The indexed columns
// duplicate fields of the CBOR payload for querying; the payload is
// authoritative.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq       INTEGER PRIMARY KEY,
	timestamp TEXT NOT NULL,
	kind      TEXT NOT NULL,
	action    TEXT NOT NULL,
	outcome   TEXT NOT NULL,
	namespace TEXT NOT NULL,
	hash      TEXT NOT NULL,
	payload   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_namespace ON audit_events (namespace, seq);
`

// OpenSQLite opens a durable pool with the audit schema applied.
func OpenSQLite(cfg sqlitepool.Config) (*sqlitepool.Pool, error) {
	cfg.Durable = true
	cfg.Schema = SQLiteSchema
	return sqlitepool.Open(cfg)
}

// SQLiteSink writes events to the audit_events table.
type SQLiteSink struct {
	pool *sqlitepool.Pool
}

// NewSQLiteSink returns a sink backed by pool. The pool must have been
// opened with SQLiteSchema (see OpenSQLite).
func NewSQLiteSink(pool *sqlitepool.Pool) *SQLiteSink {
	return &SQLiteSink{pool: pool}
}

// Write inserts one event. A sequence number that already exists is
// an error, so a restarted process that failed to Restore cannot
// silently fork the chain.
func (s *SQLiteSink) Write(ctx context.Context, event schema.AuditEvent) error {
	payload, err := codec.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: encoding event %d: %w", event.Sequence, err)
	}
	return s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO audit_events (seq, timestamp, kind, action, outcome, namespace, hash, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					int64(event.Sequence),
					event.Timestamp.Format(time.RFC3339Nano),
					string(event.Kind),
					event.Action,
					string(event.Outcome),
					event.Namespace,
					event.Hash.String(),
					payload,
				},
			})
		if err != nil {
			return fmt.Errorf("audit: inserting event %d: %w", event.Sequence, err)
		}
		return nil
	})
}

// LoadEvents reads every stored event in sequence order.
func LoadEvents(ctx context.Context, pool *sqlitepool.Pool) ([]schema.AuditEvent, error) {
	var events []schema.AuditEvent
	err := pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT payload FROM audit_events ORDER BY seq`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, payload)
				var event schema.AuditEvent
				if err := codec.Unmarshal(payload, &event); err != nil {
					return fmt.Errorf("audit: decoding stored event: %w", err)
				}
				events = append(events, event)
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
