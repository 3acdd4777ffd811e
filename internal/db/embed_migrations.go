package db

import "embed"

// MigrationFS embeds the Postgres migrations for the dead_letters table.
// Used by the migrate runner (cmd/migrate).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
