package migrations

import (
	"context"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/jmoiron/sqlx"
)

var All = make(map[types.MigrationVersion]types.Migration)

func registerMigration(m types.Migration) {
	All[m.Version()] = m
}

// Picks the SQLite or Postgres spelling of a statement.
func dialect(tx *sqlx.Tx, sqlite, postgres string) string {
	if db.IsSQLite(tx) {
		return sqlite
	}
	return postgres
}

func columnExists(ctx context.Context, tx *sqlx.Tx, table, column string) (bool, error) {
	if db.IsSQLite(tx) {
		names, err := db.QueryScalar[string](ctx, tx, `SELECT name FROM pragma_table_info(?)`, table)
		if err != nil {
			return false, err
		}
		for _, name := range names {
			if name == column {
				return true, nil
			}
		}
		return false, nil
	}

	n, err := db.QueryOneScalar[int](ctx, tx,
		`
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?
		`,
		table, column,
	)
	return n > 0, err
}
