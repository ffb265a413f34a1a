// Package migrations holds lockgate's Postgres schema: accounts, lockout
// attempt records, reset tokens and audit events. database.Migrate applies
// the *.up.sql files in name order at startup and in integration tests.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
