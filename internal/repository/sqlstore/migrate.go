package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates the schema for the connected driver. Every statement is
// idempotent, so running it against an existing database is a no-op.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements, err := schemaStatements(db.DriverName())
	if err != nil {
		return err
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

func schemaStatements(driver string) ([]string, error) {
	raw, err := migrations.ReadFile("migrations/" + driver + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for driver %q: %w", driver, err)
	}

	var statements []string
	for _, stmt := range strings.Split(string(raw), ";\n") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}
