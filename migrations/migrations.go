// Package migrations embeds the database schema migrations.
package migrations

import "embed"

// FS contains the embedded migration files
//
//go:embed postgres/*.sql
var FS embed.FS
