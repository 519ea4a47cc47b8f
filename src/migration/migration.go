package migration

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/migration/migrations"
	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// Commands returns the migrate and makemigration commands for the root command.
func Commands() []*cobra.Command {
	var listMigrations bool

	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := db.MustOpen()
			defer conn.Close()

			if listMigrations {
				if err := ListMigrations(ctx, conn, os.Stdout); err != nil {
					logging.Fatal().Err(err).Msg("failed to list migrations")
				}
				return
			}

			targetVersion := types.MigrationVersion{}
			if len(args) > 0 {
				var err error
				targetVersion, err = types.ParseMigrationVersion(args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v\n", err)
					os.Exit(1)
				}
			}
			if err := Migrate(ctx, conn, targetVersion); err != nil {
				logging.Fatal().Err(err).Msg("migration failed")
			}
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			path, err := MakeMigration(filepath.Join("src", "migration", "migrations"), name, description, time.Now())
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to create migration")
			}
			fmt.Println("Successfully created migration file:")
			fmt.Println(path)
		},
	}

	return []*cobra.Command{migrateCommand, makeMigrationCommand}
}

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func ensureMigrationTable(ctx context.Context, conn db.ConnOrTx) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weights_migration (
			version TEXT NOT NULL
		)
	`)
	if err != nil {
		return oops.New(err, "failed to create migration table")
	}

	numRows, err := db.QueryOneScalar[int](ctx, conn, "SELECT COUNT(*) FROM weights_migration")
	if err != nil {
		return err
	}
	if numRows < 1 {
		_, err := db.Exec(ctx, conn, "INSERT INTO weights_migration (version) VALUES (?)", "")
		if err != nil {
			return oops.New(err, "failed to insert initial migration row")
		}
	}
	return nil
}

// CurrentVersion returns the version the database is migrated to, or the zero
// version if it has never been migrated.
func CurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	if err := ensureMigrationTable(ctx, conn); err != nil {
		return types.MigrationVersion{}, err
	}
	raw, err := db.QueryOneScalar[string](ctx, conn, "SELECT version FROM weights_migration")
	if err != nil {
		return types.MigrationVersion{}, oops.New(err, "failed to get current version")
	}
	if raw == "" {
		return types.MigrationVersion{}, nil
	}
	return types.ParseMigrationVersion(raw)
}

func ListMigrations(ctx context.Context, conn *sqlx.DB, out io.Writer) error {
	currentVersion, err := CurrentVersion(ctx, conn)
	if err != nil {
		return err
	}
	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Fprintf(out, "%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
	return nil
}

// Migrate rolls the database forward or back to targetVersion. The zero
// version means the latest migration. Each migration runs in its own
// transaction along with the version bump.
func Migrate(ctx context.Context, conn *sqlx.DB, targetVersion types.MigrationVersion) error {
	currentVersion, err := CurrentVersion(ctx, conn)
	if err != nil {
		return err
	}
	if currentVersion.IsZero() {
		logging.Info().Msg("This is the first time you have run database migrations.")
	} else {
		logging.Debug().Str("version", currentVersion.String()).Msg("Current migration version")
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex := -1
	targetIndex := -1
	for i, version := range allVersions {
		if currentVersion.Equal(version) {
			currentIndex = i
		}
		if targetVersion.Equal(version) {
			targetIndex = i
		}
	}

	if targetIndex < 0 {
		return oops.New(nil, "could not find migration with version %v", targetVersion)
	}
	if currentIndex < 0 && !currentVersion.IsZero() {
		return oops.New(nil, "database is at unknown migration version %v", currentVersion)
	}

	if currentIndex < targetIndex {
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			logging.Info().Str("version", version.String()).Str("name", migration.Name()).Msg("Applying migration")

			err := db.Tx(ctx, conn, func(tx *sqlx.Tx) error {
				if err := migration.Up(ctx, tx); err != nil {
					return oops.New(err, "migration %v (%s) failed", version, migration.Name())
				}
				return setVersion(ctx, tx, version)
			})
			if err != nil {
				return err
			}
		}
	} else if currentIndex > targetIndex {
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}
			migration := migrations.All[version]
			logging.Info().Str("version", version.String()).Str("name", migration.Name()).Msg("Rolling back migration")

			err := db.Tx(ctx, conn, func(tx *sqlx.Tx) error {
				if err := migration.Down(ctx, tx); err != nil {
					return oops.New(err, "rollback of migration %v (%s) failed", version, migration.Name())
				}
				return setVersion(ctx, tx, previousVersion)
			})
			if err != nil {
				return err
			}
		}
	} else {
		logging.Debug().Msg("Already migrated; nothing to do.")
	}
	return nil
}

func setVersion(ctx context.Context, tx *sqlx.Tx, version types.MigrationVersion) error {
	value := ""
	if !version.IsZero() {
		value = version.String()
	}
	if _, err := db.Exec(ctx, tx, "UPDATE weights_migration SET version = ?", value); err != nil {
		return oops.New(err, "failed to update version in migrations table")
	}
	return nil
}

//go:embed migrationTemplate.txt
var migrationTemplate string

// MakeMigration writes a new migration file stamped with now into dir and
// returns its path.
func MakeMigration(dir, name, description string, now time.Time) (string, error) {
	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	now = now.UTC()
	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)

	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(result), 0644); err != nil {
		return "", oops.New(err, "failed to write migration file")
	}
	return path, nil
}
