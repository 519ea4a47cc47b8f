package migrations

import (
	"context"
	"time"

	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/jmoiron/sqlx"
)

func init() {
	registerMigration(AddWeightDateIndex{})
}

type AddWeightDateIndex struct{}

func (m AddWeightDateIndex) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC))
}

func (m AddWeightDateIndex) Name() string {
	return "AddWeightDateIndex"
}

func (m AddWeightDateIndex) Description() string {
	return "Indexes weights by date for the column and export queries"
}

func (m AddWeightDateIndex) Up(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS weights_date ON weights (date)`)
	return err
}

func (m AddWeightDateIndex) Down(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP INDEX weights_date`)
	return err
}
