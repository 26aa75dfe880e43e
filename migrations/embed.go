// Package migrations embeds the SQL schema for the signal store.
package migrations

import (
	"embed"

	"github.com/nerrad567/remo-relay/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
