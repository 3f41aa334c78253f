package db

import (
	"context"
	_ "embed"

	"climatestats/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the embedded DDL. All statements use IF NOT EXISTS,
// so calling this on every startup is safe and replaces an out-of-band
// migration step for a schema this small.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply database schema", err)
	}
	return nil
}
