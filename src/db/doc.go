/*
This package contains lowish-level APIs for making database queries against
either the SQLite file or a Postgres database. It streamlines mapping query
results to Go types while still letting you write plain SQL.

The primary functions are Query and QueryOne. Mapping is done by sqlx, so
struct fields are matched to columns with `db:"column_name"` tags.

Query syntax

Arguments use ? placeholders no matter which database is in use. They are
rewritten to the driver's own bind style before the query runs.

	ids, err := db.QueryScalar[int](ctx, conn, `SELECT id FROM users WHERE color = ?`, "#FF6B6B")

To query every tagged column of a struct, use the special $columns placeholder:

	type User struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	users, err := db.Query[User](ctx, conn, `SELECT $columns FROM users`)
	// Resulting query:
	// SELECT id, name FROM users

When a JOIN makes column names ambiguous, give the placeholder a table prefix
like $columns{u}:

	SELECT $columns{u} FROM users AS u JOIN weights AS w ON w.user_id = u.id
	// SELECT u.id, u.name FROM ...
*/
package db
