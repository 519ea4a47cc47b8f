package types

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Migration interface {
	Version() MigrationVersion
	Name() string
	Description() string
	Up(ctx context.Context, tx *sqlx.Tx) error
	Down(ctx context.Context, tx *sqlx.Tx) error
}

type MigrationVersion time.Time

func ParseMigrationVersion(s string) (MigrationVersion, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return MigrationVersion{}, err
	}
	return MigrationVersion(t.UTC()), nil
}

func (v MigrationVersion) String() string {
	return time.Time(v).Format(time.RFC3339)
}

func (v MigrationVersion) Before(other MigrationVersion) bool {
	return time.Time(v).Before(time.Time(other))
}

func (v MigrationVersion) Equal(other MigrationVersion) bool {
	return time.Time(v).Equal(time.Time(other))
}

func (v MigrationVersion) IsZero() bool {
	return time.Time(v).IsZero()
}
