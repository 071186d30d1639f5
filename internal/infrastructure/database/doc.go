// Package database opens the SQLite file holding sampled rows and the
// alert log, and versions its schema.
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Storage.SQLite))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// The pool holds one connection. WAL mode keeps API reads from waiting
// on the sampler's inserts. `powertag migrate` exposes MigrationStatus,
// Migrate and MigrateDown from the command line.
package database
