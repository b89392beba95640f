// Package migrations embeds the goose SQL migrations for the Postgres
// storage backend.
package migrations

import "embed"

// Migrations holds the SQL migration files applied by goose.
//
//go:embed *.sql
var Migrations embed.FS
