// Package migrations embeds the client cache's SQLite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
