/*
Package migration manages schema changes for the router's optional
relational backing store across PostgreSQL, MySQL, and SQLite, built on
golang-migrate.

Per-dialect SQL files are embedded via embed.FS and applied through
golang-migrate's iofs source driver; only the request-log sink's single
table is migrated today. Supports forward migration, rollback, stepwise
application, jump-to-version, and forced version resets.

Migrator defines the full operation set (Up/Down/DownAll/Steps/Goto/
Force/Version/Status/Info/Close); DefaultMigrator is the golang-migrate-
backed implementation. NewMigratorFromDatabaseConfig and
NewMigratorFromURL build a Migrator from the router's own config or an
explicit dialect+DSN pair, and CLI formats its operations for
`router migrate`'s terminal output.
*/
package migration
