// Package database provides SQLite database connectivity for Slate.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (applied in version order)
//   - Connection lifecycle management and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files live in the migrations package and are embedded into the
// binary. Each file is named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql for rollback.
package database
