package admintools

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/jmoiron/sqlx"
)

// Users who have never logged in get this until they change it.
const DefaultPassword = "password123"

const generatedPasswordLength = 12
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var ErrUserNotFound = errors.New("user not found")

type MissingUserError struct {
	Name string
}

func (e *MissingUserError) Error() string {
	return fmt.Sprintf("User '%s' not found", e.Name)
}

func (e *MissingUserError) Is(target error) bool {
	return target == ErrUserNotFound
}

// SetupPasswords gives every user without a password the default one and
// reports what it did to out.
func SetupPasswords(ctx context.Context, conn *sqlx.DB, out io.Writer) error {
	fmt.Fprintln(out, "Setting up passwords for existing users...")

	users, err := trackerdata.FetchUsers(ctx, conn)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found in database.")
		return nil
	}

	fmt.Fprintf(out, "Found %d users:\n", len(users))
	for _, user := range users {
		if user.HasPassword() {
			fmt.Fprintf(out, "- %s (password already set)\n", user.Name)
			continue
		}

		fmt.Fprintf(out, "- %s (no password)\n", user.Name)
		hashed := auth.HashPassword(DefaultPassword)
		if err := trackerdata.UpdateUserPassword(ctx, conn, user.ID, hashed.String()); err != nil {
			return oops.New(err, "failed to set default password for %s", user.Name)
		}
		fmt.Fprintf(out, "  → Set default password: %s\n", DefaultPassword)
		fmt.Fprintln(out, "  → User should change this password after first login")
	}

	fmt.Fprintln(out, "\nPassword setup complete!")
	fmt.Fprintln(out, "Users with default passwords should change them after logging in.")
	return nil
}

// RandomPassword draws uniformly from A-Z, a-z and 0-9.
func RandomPassword(r io.Reader, length int) (string, error) {
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(r, alphabetLen)
		if err != nil {
			return "", oops.New(err, "failed to generate password")
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// GeneratePasswords sets a fresh random password for each named user and
// writes them to out as CSV. Nothing is changed unless every user exists.
func GeneratePasswords(ctx context.Context, conn *sqlx.DB, names []string, r io.Reader, out io.Writer) error {
	var users []*models.User
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		user, err := trackerdata.FindUserByName(ctx, conn, name)
		if err != nil {
			if errors.Is(err, db.NotFound) {
				return &MissingUserError{Name: name}
			}
			return err
		}
		users = append(users, user)
	}
	if len(users) == 0 {
		return oops.New(nil, "no user names given")
	}

	lines := []string{"username,password"}
	err := db.Tx(ctx, conn, func(tx *sqlx.Tx) error {
		for _, user := range users {
			password, err := RandomPassword(r, generatedPasswordLength)
			if err != nil {
				return err
			}
			hashed := auth.HashPassword(password)
			if err := trackerdata.UpdateUserPassword(ctx, tx, user.ID, hashed.String()); err != nil {
				return oops.New(err, "failed to set password for %s", user.Name)
			}
			lines = append(lines, fmt.Sprintf("%q,%q", user.Name, password))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
	return nil
}

func UsersWithoutPasswords(ctx context.Context, conn db.ConnOrTx) ([]string, error) {
	users, err := trackerdata.FetchUsersWithoutPassword(ctx, conn)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}
	return names, nil
}
