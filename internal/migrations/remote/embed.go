// Package remote embeds the shared Postgres schema migrations.
package remote

import "embed"

//go:embed *.sql
var Migrations embed.FS
