package db

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fridayweigh/weights/src/config"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/utils"
	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Opens the tracker database described by the global config.
// The resulting handle is safe for concurrent use.
func Open() (*sqlx.DB, error) {
	return OpenWithConfig(config.Config.Database)
}

func MustOpen() *sqlx.DB {
	return utils.Must1(Open())
}

func OpenWithConfig(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(utils.OrDefault(cfg.Path, config.Config.Database.Path))
	case "postgres", "pgx":
		return openPostgres(cfg)
	default:
		return nil, oops.New(nil, "unknown database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (creating if necessary) the SQLite database at path with
// foreign keys enforced and WAL journaling.
func OpenSQLite(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, oops.New(err, "failed to create database directory")
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	dsn := "file:" + path + "?" + q.Encode()

	conn, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, oops.New(err, "failed to open sqlite database")
	}
	// A single writer avoids SQLITE_BUSY between our own connections.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, oops.New(err, "failed to connect to sqlite database at %s", path)
	}
	return conn, nil
}

func openPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	pgcfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, oops.New(err, "failed to parse postgres connection string")
	}

	level, err := tracelog.LogLevelFromString(utils.OrDefault(cfg.LogLevel, "warn"))
	if err != nil {
		level = tracelog.LogLevelWarn
	}
	pgcfg.Tracer = &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(*logging.GlobalLogger()),
		LogLevel: level,
	}

	conn := sqlx.NewDb(stdlib.OpenDB(*pgcfg), DriverPostgres)
	conn.SetMaxOpenConns(utils.OrDefault(cfg.MaxOpenConns, 4))

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, oops.New(err, "failed to connect to postgres")
	}
	return conn, nil
}

func IsSQLite(conn ConnOrTx) bool {
	return conn.DriverName() == DriverSQLite
}
