package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
)

// Returned for an unknown user as well as a wrong password, so callers cannot
// tell which one it was.
var ErrCredentialMismatch = errors.New("invalid credentials")

var ErrPasswordRequired = errors.New("password must not be empty")

// UserStore is the slice of user storage that authentication needs.
type UserStore interface {
	// Case-insensitive. Returns db.NotFound if there is no such user.
	FindUserByName(ctx context.Context, name string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID int, hashed string) error
}

type Authenticator struct {
	Users    UserStore
	Sessions *SessionStore
}

// Login checks a username and password and starts a session for the user.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrCredentialMismatch
	}

	user, err := a.Users.FindUserByName(ctx, username)
	if errors.Is(err, db.NotFound) {
		return "", ErrCredentialMismatch
	} else if err != nil {
		return "", oops.New(err, "failed to look up user for login")
	}
	if !user.HasPassword() {
		return "", ErrCredentialMismatch
	}

	hashed, err := ParsePasswordString(*user.Password)
	if err != nil {
		return "", oops.New(err, "failed to parse stored password for user %d", user.ID)
	}
	ok, err := CheckPassword(password, hashed)
	if err != nil {
		return "", oops.New(err, "failed to check password for user %d", user.ID)
	}
	if !ok {
		return "", ErrCredentialMismatch
	}

	if hashed.IsOutdated() {
		upgraded := HashPassword(password)
		if err := a.Users.UpdateUserPassword(ctx, user.ID, upgraded.String()); err != nil {
			// The login itself is still valid; try again next time.
			logging.ExtractLogger(ctx).Error().Err(err).Int("user", user.ID).Msg("failed to upgrade password hash")
		} else {
			logging.ExtractLogger(ctx).Info().Int("user", user.ID).Str("from", string(hashed.Algorithm)).Msg("upgraded password hash")
		}
	}

	return a.Sessions.Create(user.ID)
}

// UserIDForSession returns the user behind a session token, extending the
// session.
func (a *Authenticator) UserIDForSession(token string) (int, error) {
	if token == "" {
		return 0, ErrSessionNotFound
	}
	sess, err := a.Sessions.Get(token)
	if err != nil {
		return 0, err
	}
	return sess.UserID, nil
}

func (a *Authenticator) Logout(token string) {
	if token != "" {
		a.Sessions.Delete(token)
	}
}

func (a *Authenticator) ChangePassword(ctx context.Context, userID int, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	hashed := HashPassword(newPassword)
	if err := a.Users.UpdateUserPassword(ctx, userID, hashed.String()); err != nil {
		return oops.New(err, "failed to change password")
	}
	return nil
}
