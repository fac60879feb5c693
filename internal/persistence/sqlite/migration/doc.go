// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS (normally an embed.FS compiled into the
// binary) and must be named {version}_{description}.sql, for example
// "001_initial_schema.sql". Versions are applied in ascending numeric order, each
// inside its own transaction, and recorded in the schema_migrations table so a
// version is never applied twice.
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
