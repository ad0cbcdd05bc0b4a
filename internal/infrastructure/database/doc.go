// Package database opens and migrates the SQLite store holding the
// capacity entities: rules, overrides, special events, booking policies,
// the zone/slot baseline and the evaluation log.
//
// The connection runs in WAL mode so evaluation reads proceed while the
// store persists a mutation, with a busy timeout to ride out lock
// contention and a single-connection pool matching SQLite's one-writer
// model. The file is created with 0600 permissions and every repository
// query uses parameterised statements.
//
// Schema migrations are embedded .up.sql/.down.sql pairs registered by the
// migrations package and applied oldest first, one transaction each. The
// capacity schema is additive-only: new columns are nullable or defaulted,
// and nothing is dropped or renamed, so Migrate can always be re-run.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
