package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fridayweigh/weights/src/config"
	"github.com/fridayweigh/weights/src/jobs"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/jonboulle/clockwork"
)

// Sessions live for a year after their last use. This favors convenience over
// security; shorten it through config rather than here.
const DefaultSessionTimeout = 365 * 24 * time.Hour

const DefaultSweepInterval = time.Hour

const tokenBytes = 32

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	Token        string
	UserID       int
	CreatedAt    time.Time
	LastAccessed time.Time
}

type SessionStoreOpts struct {
	Timeout time.Duration   // default DefaultSessionTimeout
	Clock   clockwork.Clock // default real time
	Rand    io.Reader       // default crypto/rand.Reader
}

// SessionStore is the in-memory registry of logged-in sessions. Sessions
// expire once they have gone unused for longer than the timeout; every
// successful Get extends them.
type SessionStore struct {
	timeout time.Duration
	clock   clockwork.Clock
	rand    io.Reader

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore(opts SessionStoreOpts) *SessionStore {
	s := &SessionStore{
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		rand:     opts.Rand,
		sessions: make(map[string]*Session),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultSessionTimeout
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.rand == nil {
		s.rand = rand.Reader
	}
	return s
}

func (s *SessionStore) Timeout() time.Duration {
	return s.timeout
}

func (s *SessionStore) newToken() (string, error) {
	idBytes := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.rand, idBytes); err != nil {
		return "", oops.New(err, "failed to generate session token")
	}
	return hex.EncodeToString(idBytes), nil
}

// Create registers a new session for userID and returns its token.
func (s *SessionStore) Create(userID int) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &Session{
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return token, nil
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastAccessed) > s.timeout
}

// Get looks up a session and marks it as used. Expired sessions are removed
// and reported as ErrSessionNotFound.
func (s *SessionStore) Get(token string) (Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.expired(sess, now) {
		delete(s.sessions, token)
		return Session{}, ErrSessionNotFound
	}
	sess.LastAccessed = now
	return *sess, nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// SweepExpired removes every expired session and returns how many were
// removed.
func (s *SessionStore) SweepExpired() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func PeriodicallySweepSessions(store *SessionStore, interval time.Duration) *jobs.Job {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return jobs.Periodically("sweep expired sessions", store.clock, interval, func(ctx context.Context) error {
		n := store.SweepExpired()
		if n > 0 {
			logging.ExtractLogger(ctx).Info().Int("num deleted sessions", n).Int("remaining", store.Len()).Msg("Deleted expired sessions")
		}
		return nil
	})
}

func cookieName() string {
	if config.Config.Auth.CookieName == "" {
		return "session"
	}
	return config.Config.Auth.CookieName
}

// SessionFromRequest returns the session token carried by the request's
// cookie, or "" if there is none.
func SessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(cookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Cookie builds the session cookie for token. It expires when a session
// created now would, if left unused.
func (s *SessionStore) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:  cookieName(),
		Value: token,
		Path:  "/",

		Domain:  config.Config.Auth.CookieDomain,
		Expires: s.clock.Now().Add(s.timeout),

		Secure:   config.Config.Auth.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func DeleteSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   config.Config.Auth.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   config.Config.Auth.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
