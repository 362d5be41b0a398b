// Package migrations ships the schema with the binary. The SQL files
// are written to be idempotent so the runners can apply the full set on
// every startup.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
