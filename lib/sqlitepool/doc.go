// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the control plane's SQLite connection
// pool, used by the durable audit sink.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies a fixed
// set of pragmas to every connection:
//
//   - journal_mode=WAL: readers (audit export, verification) never
//     block the appending writer.
//   - synchronous=FULL when [Config.Durable] is set, NORMAL otherwise.
//     An audit record that has been acknowledged must survive power
//     loss, so the audit sink opens its pool durable.
//   - busy_timeout=5000: wait for the write lock instead of failing
//     with SQLITE_BUSY.
//   - temp_store=MEMORY.
//
// [Config.Schema] is executed on every new connection after the
// pragmas, so callers write idempotent CREATE ... IF NOT EXISTS DDL.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:    "/var/lib/trustplane/audit.db",
//	    Durable: true,
//	    Schema:  auditSchema,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.Transaction(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, insertSQL, &sqlitex.ExecOptions{Args: args})
//	})
//
// The package exposes zombiezen types directly: callers write SQL and
// use sqlitex.Execute. There is no query builder.
package sqlitepool
