// Package migrations embeds the tracker's PostgreSQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
