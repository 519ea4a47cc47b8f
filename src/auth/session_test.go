package auth

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/fridayweigh/weights/src/jobs"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)

func newTestStore(timeout time.Duration) (*SessionStore, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	return NewSessionStore(SessionStoreOpts{Timeout: timeout, Clock: clk}), clk
}

func TestSessionCreate(t *testing.T) {
	t.Run("token is 64 hex chars", func(t *testing.T) {
		store, _ := newTestStore(time.Hour)
		token, err := store.Create(7)
		require.NoError(t, err)
		assert.Regexp(t, "^[0-9a-f]{64}$", token)

		sess, err := store.Get(token)
		require.NoError(t, err)
		assert.Equal(t, 7, sess.UserID)
		assert.Equal(t, token, sess.Token)
		assert.Equal(t, epoch, sess.CreatedAt)
		assert.Equal(t, epoch, sess.LastAccessed)
	})
	t.Run("uses the injected random source", func(t *testing.T) {
		store := NewSessionStore(SessionStoreOpts{Rand: bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))})
		token, err := store.Create(1)
		require.NoError(t, err)
		assert.Equal(t, string(bytes.Repeat([]byte("ab"), 32)), token)
	})
	t.Run("random source failure", func(t *testing.T) {
		store := NewSessionStore(SessionStoreOpts{Rand: iotest.ErrReader(errors.New("no entropy"))})
		_, err := store.Create(1)
		assert.ErrorContains(t, err, "no entropy")
		assert.Equal(t, 0, store.Len())
	})
	t.Run("tokens are distinct", func(t *testing.T) {
		store, _ := newTestStore(time.Hour)
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			token, err := store.Create(1)
			require.NoError(t, err)
			assert.False(t, seen[token])
			seen[token] = true
		}
		assert.Equal(t, 100, store.Len())
	})
}

func TestSessionExpiry(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		store, _ := newTestStore(time.Hour)
		_, err := store.Get("nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
	t.Run("exactly at timeout is still valid", func(t *testing.T) {
		store, clk := newTestStore(time.Hour)
		token, _ := store.Create(1)
		clk.Advance(time.Hour)
		_, err := store.Get(token)
		assert.NoError(t, err)
	})
	t.Run("past timeout is removed lazily", func(t *testing.T) {
		store, clk := newTestStore(time.Hour)
		token, _ := store.Create(1)
		clk.Advance(time.Hour + time.Nanosecond)
		assert.Equal(t, 1, store.Len())
		_, err := store.Get(token)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.Equal(t, 0, store.Len())
	})
	t.Run("get slides the window", func(t *testing.T) {
		store, clk := newTestStore(time.Hour)
		token, _ := store.Create(1)
		for i := 0; i < 5; i++ {
			clk.Advance(50 * time.Minute)
			sess, err := store.Get(token)
			require.NoError(t, err, "access %d", i)
			assert.Equal(t, clk.Now(), sess.LastAccessed)
			assert.Equal(t, epoch, sess.CreatedAt)
		}
	})
	t.Run("default timeout is a year", func(t *testing.T) {
		clk := clockwork.NewFakeClockAt(epoch)
		store := NewSessionStore(SessionStoreOpts{Clock: clk})
		assert.Equal(t, 365*24*time.Hour, store.Timeout())

		token, _ := store.Create(1)
		clk.Advance(364 * 24 * time.Hour)
		_, err := store.Get(token)
		assert.NoError(t, err)
		clk.Advance(366 * 24 * time.Hour)
		_, err = store.Get(token)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
	t.Run("returned session is a copy", func(t *testing.T) {
		store, clk := newTestStore(time.Hour)
		token, _ := store.Create(1)
		sess, _ := store.Get(token)
		sess.UserID = 99
		sess.LastAccessed = time.Time{}
		clk.Advance(time.Minute)
		again, err := store.Get(token)
		require.NoError(t, err)
		assert.Equal(t, 1, again.UserID)
	})
}

func TestSessionDelete(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	token, _ := store.Create(1)
	store.Delete(token)
	_, err := store.Get(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotPanics(t, func() {
		store.Delete(token)
		store.Delete("never existed")
	})
}

func TestSweepExpired(t *testing.T) {
	store, clk := newTestStore(time.Hour)
	old1, _ := store.Create(1)
	old2, _ := store.Create(2)
	clk.Advance(30 * time.Minute)
	fresh, _ := store.Create(3)
	clk.Advance(31 * time.Minute)

	assert.Equal(t, 2, store.SweepExpired())
	assert.Equal(t, 1, store.Len())
	_, err := store.Get(fresh)
	assert.NoError(t, err)
	for _, token := range []string{old1, old2} {
		_, err := store.Get(token)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}
	assert.Equal(t, 0, store.SweepExpired())
}

func TestSessionConcurrency(t *testing.T) {
	store, clk := newTestStore(time.Hour)
	token, _ := store.Create(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			store.Get(token)
		}()
		go func() {
			defer wg.Done()
			store.SweepExpired()
		}()
		go func() {
			defer wg.Done()
			clk.Advance(time.Second)
		}()
	}
	wg.Wait()

	// Once deleted, no concurrent Get may bring a session back.
	store.Delete(token)
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Get(token)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}

func TestPeriodicallySweepSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, clk := newTestStore(time.Hour)
	store.Create(1)
	job := PeriodicallySweepSessions(store, time.Hour)

	clk.Advance(2 * time.Hour)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, time.Millisecond)

	unfinished := jobs.Jobs{job}.CancelAndWait(time.Second)
	assert.Empty(t, unfinished)
}

func TestSessionCookies(t *testing.T) {
	t.Run("new cookie", func(t *testing.T) {
		store := NewSessionStore(SessionStoreOpts{Clock: clockwork.NewFakeClockAt(epoch)})
		cookie := store.Cookie("abc")
		assert.Equal(t, "session", cookie.Name)
		assert.Equal(t, "abc", cookie.Value)
		assert.Equal(t, "/", cookie.Path)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, epoch.Add(365*24*time.Hour), cookie.Expires)
	})

	t.Run("cookie follows the configured timeout", func(t *testing.T) {
		store, clk := newTestStore(2 * time.Hour)
		clk.Advance(time.Hour)
		cookie := store.Cookie("abc")
		assert.Equal(t, epoch.Add(3*time.Hour), cookie.Expires)
	})
	t.Run("delete cookie", func(t *testing.T) {
		cookie := DeleteSessionCookie()
		assert.Equal(t, "session", cookie.Name)
		assert.Empty(t, cookie.Value)
		assert.Equal(t, int64(0), cookie.Expires.Unix())
		assert.Equal(t, -1, cookie.MaxAge)
		assert.Contains(t, cookie.String(), "Max-Age=0")
	})
	t.Run("from request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, "", SessionFromRequest(req))

		req.AddCookie(&http.Cookie{Name: "other", Value: "x"})
		req.AddCookie(&http.Cookie{Name: "session", Value: "deadbeef"})
		assert.Equal(t, "deadbeef", SessionFromRequest(req))
	})
}
