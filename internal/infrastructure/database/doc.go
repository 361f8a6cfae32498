// Package database provides SQLite connectivity and schema migrations for shopgate.
//
// The database holds the credential store (when the sqlite backend is
// selected), the product catalog, orders and the audit trail.
//
//   - WAL mode so reads proceed during writes
//   - A single connection, matching SQLite's single-writer model
//   - Versioned migrations embedded into the binary, one transaction each
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
