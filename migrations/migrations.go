// Package migrations holds the database schema as numbered SQL files,
// embedded so the binaries and the integration-test harness apply the same
// DDL. Files run in lexical order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
