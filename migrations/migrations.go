// Package migrations embeds the Postgres schema so binaries and tests can migrate without a
// checkout of the SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
