// Package migrations embeds the goose migrations of the run ledger tables.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
