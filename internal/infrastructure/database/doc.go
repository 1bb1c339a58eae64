// Package database provides SQLite connectivity for mysnode.
//
// It is only opened when the identity backend is "sqlite". The schema is
// tiny (a single node_identity row) and is created by embedded migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: each version ships an .up.sql and a .down.sql,
// and the database file is created with 0600 permissions.
package database
