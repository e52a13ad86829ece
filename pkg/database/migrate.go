package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded migration in file name order inside a single
// transaction. Statements are idempotent, so running it on every start is safe.
func (db *DB) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, name := range names {
			stmt, err := migrationsFS.ReadFile(name)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, string(stmt)); err != nil {
				return fmt.Errorf("failed to apply %s: %w", name, err)
			}
			db.logger.Info().Str("migration", name).Msg("migration applied")
		}
		return nil
	})
}
