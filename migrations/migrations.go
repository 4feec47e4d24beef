// Package migrations embeds the SQL migrations of the rentals database.
// Files are ran in lexical order, and once released a file should never
// be renamed, edited or removed.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
