// Package database connects the gateway to its store backend.
//
// # Supported Backends
//
//   - Redis: the production backend. Every allow-listed command is passed
//     through unchanged.
//   - PostgreSQL: keys are rows of a values table, using a pgx pool
//   - SQLite: the same layout on modernc.org/sqlite, handy for development
//     and single-node deployments
//
// The SQL backends understand the plain string commands (GET, SET, SETNX,
// GETDEL, APPEND, STRLEN, DEL, EXISTS, MGET, MSET); any other allow-listed
// command reports cryptosheet.ErrNotImplemented.
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:   cryptosheet.StoreSQLite,
//	    DSN:    "cryptosheet.db",
//	    Tables: cryptosheet.Tables{Values: "cryptosheet_values"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	svc := cryptosheet.NewService(db.GetStore())
package database
