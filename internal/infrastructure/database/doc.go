// Package database provides the SQLite store behind the bridge's area and
// device registries.
//
// Open configures WAL mode, the busy timeout and foreign keys; Migrate
// applies the additive schema migrations embedded by the migrations package:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Queries are always parameterised and the database file is created 0600.
package database
