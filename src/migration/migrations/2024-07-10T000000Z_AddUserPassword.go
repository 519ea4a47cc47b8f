package migrations

import (
	"context"
	"time"

	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/jmoiron/sqlx"
)

func init() {
	registerMigration(AddUserPassword{})
}

type AddUserPassword struct{}

func (m AddUserPassword) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC))
}

func (m AddUserPassword) Name() string {
	return "AddUserPassword"
}

func (m AddUserPassword) Description() string {
	return "Adds a nullable password hash to users"
}

func (m AddUserPassword) Up(ctx context.Context, tx *sqlx.Tx) error {
	exists, err := columnExists(ctx, tx, "users", "password")
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE users ADD COLUMN password TEXT`)
	return err
}

func (m AddUserPassword) Down(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE users DROP COLUMN password`)
	return err
}
