// Package database provides the SQLite connection used by the signal store.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - Health checks and transaction helpers
//
// The pool is limited to a single connection. SQLite has one writer, and
// every store operation runs in its own transaction, so operations on the
// same signal name are applied one at a time.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
