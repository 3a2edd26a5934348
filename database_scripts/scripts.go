// Package dbscripts exposes the SQL files in this directory. The same files
// are mounted into the Postgres container's init directory by the deployment
// descriptor, so a compose run and a bare binary converge to one schema.
package dbscripts

import "embed"

//go:embed *.sql
var FS embed.FS
