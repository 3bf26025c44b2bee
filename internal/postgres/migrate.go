package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Migrate menjalankan schema.sql (idempotent, semua pakai IF NOT EXISTS).
func Migrate(ctx context.Context, db Runner) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
