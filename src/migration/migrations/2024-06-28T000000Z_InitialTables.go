package migrations

import (
	"context"
	"time"

	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/jmoiron/sqlx"
)

func init() {
	registerMigration(InitialTables{})
}

type InitialTables struct{}

func (m InitialTables) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC))
}

func (m InitialTables) Name() string {
	return "InitialTables"
}

func (m InitialTables) Description() string {
	return "Creates the users and weights tables"
}

// IF NOT EXISTS so that databases created before migrations were tracked are
// adopted as they are.
func (m InitialTables) Up(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, dialect(tx,
		`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			color TEXT
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT
		)
		`,
	))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, dialect(tx,
		`
		CREATE TABLE IF NOT EXISTS weights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			weight_kg REAL NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id),
			UNIQUE(user_id, date)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS weights (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			date TEXT NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL,
			UNIQUE(user_id, date)
		)
		`,
	))
	return err
}

func (m InitialTables) Down(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `DROP TABLE weights`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DROP TABLE users`)
	return err
}
