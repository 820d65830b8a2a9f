package internal

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies pending migrations and returns the schema version.
func RunMigrations(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
