package db

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/fridayweigh/weights/src/oops"
	"github.com/jmoiron/sqlx"
)

/*
A general error to be used when no results are found. This is the error returned
by QueryOne, and can generally be used by other database helpers that fetch a single
result but find nothing.
*/
var NotFound = errors.New("not found")

// This interface matches both *sqlx.DB and *sqlx.Tx.
type ConnOrTx interface {
	sqlx.ExtContext
}

/*
Performs a SQL query and returns a slice of all the result rows. You must
explicitly provide the type argument, since this is how it knows what Go type
to map the results to.

Any SQL query may be performed, including INSERT and UPDATE, as long as it
returns a result set. If it does not, use Exec.

This function always returns pointers to the values. This is convenient for structs, but for other types, you may wish to use QueryScalar.
*/
func Query[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]*T, error) {
	var result []*T
	compiled := compileQuery(conn, query, reflect.TypeOf((*T)(nil)).Elem())
	if err := sqlx.SelectContext(ctx, conn, &result, compiled, args...); err != nil {
		return nil, oops.New(err, "failed to run query")
	}
	return result, nil
}

/*
Identical to Query, but returns only the first result row. If there are no
rows in the result set, returns NotFound.
*/
func QueryOne[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (*T, error) {
	var result T
	compiled := compileQuery(conn, query, reflect.TypeOf(result))
	if err := sqlx.GetContext(ctx, conn, &result, compiled, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFound
		}
		return nil, oops.New(err, "failed to run query")
	}
	return &result, nil
}

/*
Identical to Query, but returns concrete values instead of pointers. More convenient
for primitive types.
*/
func QueryScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]T, error) {
	result := []T{}
	if err := sqlx.SelectContext(ctx, conn, &result, conn.Rebind(query), args...); err != nil {
		return nil, oops.New(err, "failed to run query")
	}
	return result, nil
}

/*
Identical to QueryScalar, but returns only the first result value. If there are
no rows in the result set, returns NotFound.
*/
func QueryOneScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (T, error) {
	var result T
	if err := sqlx.GetContext(ctx, conn, &result, conn.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, NotFound
		}
		return result, oops.New(err, "failed to run query")
	}
	return result, nil
}

// Exec runs a statement that returns no rows and reports how many rows it
// affected.
func Exec(ctx context.Context, conn ConnOrTx, query string, args ...any) (int64, error) {
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		return 0, oops.New(err, "failed to execute statement")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, oops.New(err, "failed to get affected rows")
	}
	return n, nil
}

// Tx runs f in a transaction, committing if it returns nil and rolling back
// otherwise.
func Tx(ctx context.Context, conn *sqlx.DB, f func(tx *sqlx.Tx) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return oops.New(err, "failed to commit transaction")
	}
	return nil
}

var reColumnsPlaceholder = regexp.MustCompile(`\$columns({(.*?)})?`)

func compileQuery(conn ConnOrTx, query string, destType reflect.Type) string {
	if strings.Contains(query, "$columns") {
		columns := getColumnNames(destType)
		query = reColumnsPlaceholder.ReplaceAllStringFunc(query, func(s string) string {
			m := reColumnsPlaceholder.FindStringSubmatch(s)
			prefix := m[2]
			if prefix == "" {
				return strings.Join(columns, ", ")
			}
			prefixed := make([]string, len(columns))
			for i, c := range columns {
				prefixed[i] = prefix + "." + c
			}
			return strings.Join(prefixed, ", ")
		})
	}
	return conn.Rebind(query)
}

var columnNameCache sync.Map // reflect.Type -> []string

// getColumnNames lists the db tags of a struct type in field order. Fields
// without a tag, or tagged "-", are skipped.
func getColumnNames(destType reflect.Type) []string {
	for destType.Kind() == reflect.Pointer {
		destType = destType.Elem()
	}
	if cached, ok := columnNameCache.Load(destType); ok {
		return cached.([]string)
	}
	if destType.Kind() != reflect.Struct {
		panic(oops.New(nil, "$columns can only be used when querying into a struct, not %v", destType))
	}

	var names []string
	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		names = append(names, strings.Split(tag, ",")[0])
	}

	columnNameCache.Store(destType, names)
	return names
}
