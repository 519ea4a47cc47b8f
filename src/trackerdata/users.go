package trackerdata

import (
	"context"
	"errors"
	"strings"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
)

var ErrUserNameRequired = errors.New("user name must not be empty")

func FetchUsers(ctx context.Context, dbConn db.ConnOrTx) ([]*models.User, error) {
	users, err := db.Query[models.User](ctx, dbConn, `SELECT $columns FROM users ORDER BY name, id`)
	if err != nil {
		return nil, oops.New(err, "failed to fetch users")
	}
	return users, nil
}

func FindUserByID(ctx context.Context, dbConn db.ConnOrTx, id int) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, dbConn, `SELECT $columns FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, db.NotFound
		}
		return nil, oops.New(err, "failed to fetch user %d", id)
	}
	return user, nil
}

// FindUserByName matches names case-insensitively.
func FindUserByName(ctx context.Context, dbConn db.ConnOrTx, name string) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, dbConn,
		`SELECT $columns FROM users WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`,
		strings.TrimSpace(name),
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, db.NotFound
		}
		return nil, oops.New(err, "failed to fetch user %q", name)
	}
	return user, nil
}

// UpdateUserPassword stores an already hashed password. Returns db.NotFound
// if the user does not exist.
func UpdateUserPassword(ctx context.Context, dbConn db.ConnOrTx, userID int, hashed string) error {
	n, err := db.Exec(ctx, dbConn, `UPDATE users SET password = ? WHERE id = ?`, hashed, userID)
	if err != nil {
		return oops.New(err, "failed to update password")
	}
	if n < 1 {
		return db.NotFound
	}
	return nil
}

func CreateUser(ctx context.Context, dbConn db.ConnOrTx, name, color string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrUserNameRequired
	}
	user, err := db.QueryOne[models.User](ctx, dbConn,
		`
		INSERT INTO users (name, color) VALUES (?, ?)
		RETURNING $columns
		`,
		name, color,
	)
	if err != nil {
		return nil, oops.New(err, "failed to create user %q", name)
	}
	return user, nil
}

func FetchUsersWithoutPassword(ctx context.Context, dbConn db.ConnOrTx) ([]*models.User, error) {
	users, err := db.Query[models.User](ctx, dbConn,
		`SELECT $columns FROM users WHERE password IS NULL OR password = '' ORDER BY name, id`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch users without password")
	}
	return users, nil
}

// AuthUsers adapts the user queries for authentication.
type AuthUsers struct {
	Conn db.ConnOrTx
}

func (u AuthUsers) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	return FindUserByName(ctx, u.Conn, name)
}

func (u AuthUsers) UpdateUserPassword(ctx context.Context, userID int, hashed string) error {
	return UpdateUserPassword(ctx, u.Conn, userID, hashed)
}
