// Package migrations embeds the SQL schema migrations so the migrator can
// run them from the binary without shipping files alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
