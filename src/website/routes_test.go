package website

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/broadcast"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/migration"
	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogContextErrors(t *testing.T) {
	err1 := errors.New("test error 1")
	err2 := errors.New("test error 2")

	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Print("sanity check")

	assert.Contains(t, buf.String(), "sanity check")

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) (res ResponseData) {
					c.Logger = &logger
					return logContextErrorsMiddleware(h)(c)
				}
			},
		},
	}

	routes.GET(regexp.MustCompile("^/test$"), func(c *RequestContext) ResponseData {
		return c.ErrorResponse(http.StatusInternalServerError, err1, err2)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/test")
	if assert.Nil(t, err) {
		defer res.Body.Close()

		t.Logf("Log contents: %s", buf.String())

		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

		assert.Contains(t, buf.String(), err1.Error())
		assert.Contains(t, buf.String(), err2.Error())

		body, _ := io.ReadAll(res.Body)
		assert.NotContains(t, string(body), err1.Error())
	}
}

func TestRouterPathParams(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{Router: router}

	var got map[string]string
	group := routes.Group(regexp.MustCompile(`^/things/(?P<thing>\w+)`))
	group.GET(regexp.MustCompile(`^/parts/(?P<part>\d+)$`), func(c *RequestContext) ResponseData {
		got = c.PathParams
		return ResponseData{}
	})
	routes.AnyMethod(regexp.MustCompile("^"), FourOhFour)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/widget/parts/12/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"thing": "widget", "part": "12"}, got)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things/widget/parts/12", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresAnchoredRegex(t *testing.T) {
	routes := RouteBuilder{Router: &Router{}}
	assert.Panics(t, func() {
		routes.GET(regexp.MustCompile("/oops"), FourOhFour)
	})
}

func TestPanicCatcher(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{
		Router:      router,
		Middlewares: []Middleware{panicCatcherMiddleware},
	}
	routes.GET(regexp.MustCompile("^/boom$"), func(c *RequestContext) ResponseData {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}

func TestPanicValueLoggedVerbatim(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) ResponseData {
					c.Logger = &logger
					return h(c)
				}
			},
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
		},
	}
	routes.GET(regexp.MustCompile("^/boom$"), func(c *RequestContext) ResponseData {
		panic("weight 100% over limit")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Recovered from panic with value: weight 100% over limit")
	assert.NotContains(t, buf.String(), "MISSING")
}

// Friday, 26 July 2024, early afternoon.
var testNow = time.Date(2024, 7, 26, 13, 30, 0, 0, time.UTC)

type testApp struct {
	t       *testing.T
	conn    *sqlx.DB
	clock   *clockwork.FakeClock
	hub     *broadcast.Hub
	srv     *httptest.Server
	handler http.Handler
	distDir string
	alice   *models.User
	bob     *models.User
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migration.Migrate(ctx, conn, types.MigrationVersion{}))

	alice, err := trackerdata.CreateUser(ctx, conn, "Alice", "#FF6B6B")
	require.NoError(t, err)
	bob, err := trackerdata.CreateUser(ctx, conn, "Bob", "#4ECDC4")
	require.NoError(t, err)
	require.NoError(t, trackerdata.UpdateUserPassword(ctx, conn, alice.ID, auth.HashPassword("password123").String()))

	clk := clockwork.NewFakeClockAt(testNow)
	hub := broadcast.NewHub()
	distDir := t.TempDir()

	handler := NewWebsiteRoutes(Deps{
		Conn: conn,
		Auth: &auth.Authenticator{
			Users:    trackerdata.AuthUsers{Conn: conn},
			Sessions: auth.NewSessionStore(auth.SessionStoreOpts{Clock: clk}),
		},
		Hub:     hub,
		Clock:   clk,
		Dates:   weekdates.Generator{Clock: clk},
		DistDir: distDir,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testApp{
		t:       t,
		conn:    conn,
		clock:   clk,
		hub:     hub,
		srv:     srv,
		handler: handler,
		distDir: distDir,
		alice:   alice,
		bob:     bob,
	}
}

func (a *testApp) do(method, path string, body any, cookie *http.Cookie) (*http.Response, string) {
	a.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	res, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	require.NoError(a.t, err)
	return res, string(resBody)
}

func sessionCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func (a *testApp) login() *http.Cookie {
	a.t.Helper()
	res, body := a.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "password123"}, nil)
	require.Equal(a.t, http.StatusOK, res.StatusCode, body)
	cookie := sessionCookie(res)
	require.NotNil(a.t, cookie)
	return cookie
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	res, body := app.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, body)
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestUnauthenticated(t *testing.T) {
	app := newTestApp(t)

	t.Run("root shows login page", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/", nil, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, "<title>Weight Tracker - Login</title>")
	})
	t.Run("api is unauthorized", func(t *testing.T) {
		for _, path := range []string{"/api/data", "/api/export/csv", "/api/unknown", "/api/login"} {
			res, body := app.do(http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
			assert.Equal(t, "Unauthorized", body, path)
		}
		res, _ := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": 1, "date": "2024-07-26", "weight": 70}, nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
	t.Run("pages are unauthorized", func(t *testing.T) {
		for _, path := range []string{"/assets/index.js", "/somewhere"} {
			res, body := app.do(http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
			assert.Contains(t, body, "<title>Unauthorized</title>", path)
			assert.Contains(t, body, "You are not authorized", path)
		}
	})
	t.Run("bogus session", func(t *testing.T) {
		res, _ := app.do(http.MethodGet, "/api/data", nil, &http.Cookie{Name: "session", Value: "deadbeef"})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)

	t.Run("missing credentials", func(t *testing.T) {
		for _, body := range []any{
			map[string]string{"username": "alice"},
			map[string]string{"password": "password123"},
			map[string]string{"username": "", "password": ""},
			"not json",
		} {
			res, text := app.do(http.MethodPost, "/api/login", body, nil)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, "Missing credentials", text)
		}
	})
	t.Run("invalid credentials", func(t *testing.T) {
		for _, body := range []map[string]string{
			{"username": "alice", "password": "wrong"},
			{"username": "nobody", "password": "password123"},
			{"username": "bob", "password": "password123"}, // no password set
		} {
			res, text := app.do(http.MethodPost, "/api/login", body, nil)
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
			assert.Equal(t, "Invalid credentials", text)
			assert.Nil(t, sessionCookie(res))
		}
	})
	t.Run("success", func(t *testing.T) {
		res, body := app.do(http.MethodPost, "/api/login", map[string]string{"username": "ALICE", "password": "password123"}, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"success":true}`, body)

		cookie := sessionCookie(res)
		require.NotNil(t, cookie)
		assert.Len(t, cookie.Value, 64)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, "/", cookie.Path)
		assert.WithinDuration(t, testNow.Add(365*24*time.Hour), cookie.Expires, time.Second)

		res, _ = app.do(http.MethodGet, "/api/data", nil, cookie)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	res, body := app.do(http.MethodPost, "/api/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true}`, body)
	cleared := sessionCookie(res)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)

	res, _ = app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// Logging out without a session is fine too.
	res, _ = app.do(http.MethodPost, "/api/logout", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSessionExpiry(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	app.clock.Advance(364 * 24 * time.Hour)
	res, _ := app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode, "use within a year keeps the session alive")

	app.clock.Advance(364 * 24 * time.Hour)
	res, _ = app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode, "expiry slides from the last access")

	app.clock.Advance(366 * 24 * time.Hour)
	res, _ = app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	res, body := app.do(http.MethodPost, "/api/change-password", map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Missing password", body)

	res, body = app.do(http.MethodPost, "/api/change-password", map[string]string{"newPassword": "hunter2"}, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true}`, body)

	res, _ = app.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "password123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res, _ = app.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "hunter2"}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// The existing session survives a password change.
	res, _ = app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

type dataPayload struct {
	Users []struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Color      string `json:"color"`
		ColorLight string `json:"colorLight"`
		Password   string `json:"password"`
	} `json:"users"`
	Weights     map[string]models.WeightEntry `json:"weights"`
	DateColumns []string                      `json:"dateColumns"`
}

func TestData(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	t.Run("empty", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/data", nil, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)

		var data dataPayload
		require.NoError(t, json.Unmarshal([]byte(body), &data))
		assert.Equal(t, []string{"2024-07-26"}, data.DateColumns)
		assert.Empty(t, data.Weights)
		require.Len(t, data.Users, 2)
		assert.Equal(t, "Alice", data.Users[0].Name)
		assert.Equal(t, "#FF6B6B", data.Users[0].Color)
		assert.NotEmpty(t, data.Users[0].ColorLight)
		assert.Empty(t, data.Users[0].Password)
		assert.NotContains(t, body, "argon2id")
	})

	t.Run("fills missing fridays", func(t *testing.T) {
		ctx := context.Background()
		_, err := trackerdata.UpsertWeight(ctx, app.conn, app.alice.ID, "2024-06-28", 70.5)
		require.NoError(t, err)
		_, err = trackerdata.UpsertWeight(ctx, app.conn, app.bob.ID, "2024-07-05", 82.3)
		require.NoError(t, err)

		res, body := app.do(http.MethodGet, "/api/data", nil, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)

		var data dataPayload
		require.NoError(t, json.Unmarshal([]byte(body), &data))
		assert.Equal(t, []string{"2024-06-28", "2024-07-05", "2024-07-12", "2024-07-19", "2024-07-26"}, data.DateColumns)
		require.Contains(t, data.Weights, trackerdata.GridKey(app.alice.ID, "2024-06-28"))
		entry := data.Weights[trackerdata.GridKey(app.alice.ID, "2024-06-28")]
		assert.Equal(t, 70.5, entry.WeightKg)
		assert.Equal(t, "Alice", entry.UserName)
	})
}

func TestSaveWeight(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()
	sub := app.hub.Register()
	defer sub.Close()

	t.Run("missing fields", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"date": "2024-07-26", "weight": 70},
			{"userId": app.alice.ID, "weight": 70},
			{"userId": app.alice.ID, "date": "2024-07-26"},
		} {
			res, text := app.do(http.MethodPost, "/api/weight", body, cookie)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, "Missing required fields", text)
		}
	})
	t.Run("bad values", func(t *testing.T) {
		res, text := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "26.07.2024", "weight": 70}, cookie)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Invalid date", text)

		res, text = app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26", "weight": "72kg"}, cookie)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Invalid weight", text)

		res, text = app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26", "weight": 0}, cookie)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Invalid weight", text)

		res, text = app.do(http.MethodPost, "/api/weight", map[string]any{"userId": 999, "date": "2024-07-26", "weight": 70}, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "User not found", text)
	})
	t.Run("first weight has no previous", func(t *testing.T) {
		res, body := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-19", "weight": 70.25}, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode, body)

		var out struct {
			Weight         *models.WeightEntry `json:"weight"`
			PreviousWeight *models.WeightEntry `json:"previousWeight"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		require.NotNil(t, out.Weight)
		assert.Equal(t, 70.3, out.Weight.WeightKg)
		assert.Equal(t, "2024-07-19", out.Weight.Date)
		assert.Nil(t, out.PreviousWeight)

		select {
		case msg := <-sub.C:
			assert.Contains(t, string(msg), `"type":"weight_updated"`)
		case <-time.After(time.Second):
			t.Fatal("no broadcast for saved weight")
		}
	})
	t.Run("comma string weight and previous", func(t *testing.T) {
		res, body := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26", "weight": "69,8"}, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode, body)

		var out struct {
			Weight         *models.WeightEntry `json:"weight"`
			PreviousWeight *models.WeightEntry `json:"previousWeight"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		assert.Equal(t, 69.8, out.Weight.WeightKg)
		require.NotNil(t, out.PreviousWeight)
		assert.Equal(t, 70.3, out.PreviousWeight.WeightKg)
		assert.Equal(t, "2024-07-19", out.PreviousWeight.Date)
	})
	t.Run("upsert replaces", func(t *testing.T) {
		res, _ := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26", "weight": 69.5}, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)

		entries, err := trackerdata.FetchWeightsByDate(context.Background(), app.conn, "2024-07-26")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 69.5, entries[0].WeightKg)
	})
}

func TestDeleteWeight(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	res, text := app.do(http.MethodDelete, "/api/weight", map[string]any{"userId": app.alice.ID}, cookie)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Missing required fields", text)

	res, text = app.do(http.MethodDelete, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26"}, cookie)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "Weight not found", text)

	_, err := trackerdata.UpsertWeight(context.Background(), app.conn, app.alice.ID, "2024-07-26", 70)
	require.NoError(t, err)

	sub := app.hub.Register()
	defer sub.Close()

	res, text = app.do(http.MethodDelete, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26"}, cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true}`, text)

	select {
	case msg := <-sub.C:
		assert.Contains(t, string(msg), `"type":"weight_deleted"`)
		assert.Contains(t, string(msg), `"date":"2024-07-26"`)
	case <-time.After(time.Second):
		t.Fatal("no broadcast for deleted weight")
	}

	res, _ = app.do(http.MethodDelete, "/api/weight", map[string]any{"userId": app.alice.ID, "date": "2024-07-26"}, cookie)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestExports(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()
	ctx := context.Background()
	_, err := trackerdata.UpsertWeight(ctx, app.conn, app.alice.ID, "2024-07-19", 70.5)
	require.NoError(t, err)
	_, err = trackerdata.UpsertWeight(ctx, app.conn, app.bob.ID, "2024-07-26", 82)
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/export/csv", nil, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/csv")
		assert.Equal(t, `attachment; filename="weight-tracker-2024-07-26.csv"`, res.Header.Get("Content-Disposition"))
		assert.Equal(t, "Benutzer,Farbe,2024-07-19,2024-07-26\nAlice,#FF6B6B,70.5,\nBob,#4ECDC4,,82\n", body)
	})
	t.Run("json", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/export/json", nil, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, `attachment; filename="weight-tracker-2024-07-26.json"`, res.Header.Get("Content-Disposition"))

		var export trackerdata.JSONExport
		require.NoError(t, json.Unmarshal([]byte(body), &export))
		assert.True(t, export.ExportDate.Equal(testNow))
		require.Len(t, export.Users, 2)
		assert.Equal(t, map[string]float64{"2024-07-19": 70.5}, export.Users[0].Weights)
	})
	t.Run("sqlite", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/export/sqlite", nil, cookie)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "application/octet-stream", res.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="weight-tracker-2024-07-26.db"`, res.Header.Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(body, "SQLite format 3\x00"))
	})
	t.Run("unknown format", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/export/xml", nil, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "Not Found", body)
	})
}

func TestExportSnapshotFailure(t *testing.T) {
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	c := &RequestContext{
		Req:  httptest.NewRequest(http.MethodGet, "/api/export/sqlite", nil),
		Conn: conn,
		ctx:  context.Background(),
	}
	res := exportSQLite(c)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Failed to export database", res.Body.String())
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "failed to snapshot database for export")
}

func TestExportFilenameUsesConfiguredTimezone(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	c := &RequestContext{
		Clock: clk,
		Dates: weekdates.Generator{Clock: clk, Location: time.FixedZone("NZST", 12*60*60)},
	}
	assert.Equal(t, "weight-tracker-2024-07-27.csv", exportFilename(c, "csv"))

	c.Dates.Location = time.UTC
	assert.Equal(t, "weight-tracker-2024-07-26.csv", exportFilename(c, "csv"))
}

func TestFrontend(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	t.Run("missing index", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/", nil, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
		assert.Empty(t, body)
	})

	require.NoError(t, os.WriteFile(filepath.Join(app.distDir, "index.html"), []byte("<h1>grid</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(app.distDir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(app.distDir, "assets", "index.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(app.distDir, "secret.txt"), []byte("secret"), 0o644))

	t.Run("index", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/", nil, cookie)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "<h1>grid</h1>", body)
	})
	t.Run("asset", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/assets/index.js", nil, cookie)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "console.log(1)", body)
		assert.Contains(t, res.Header.Get("Content-Type"), "javascript")
	})
	t.Run("missing asset", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/assets/nope.js", nil, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "Not Found", body)
	})
	t.Run("asset traversal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/assets/../secret.txt", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
	})
	t.Run("unknown page", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/somewhere", nil, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "Not Found", body)
	})
	t.Run("unknown api", func(t *testing.T) {
		res, body := app.do(http.MethodGet, "/api/weight", nil, cookie)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "Not Found", body)
	})
}

func TestSessionForDeletedUser(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()

	_, err := app.conn.Exec(`DELETE FROM users WHERE id = ?`, app.alice.ID)
	require.NoError(t, err)

	res, _ := app.do(http.MethodGet, "/api/data", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebsocket(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login()
	wsUrl := "ws" + strings.TrimPrefix(app.srv.URL, "http") + "/api/ws"

	_, res, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	require.Error(t, err)
	if res != nil {
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}

	header := http.Header{}
	header.Add("Cookie", cookie.String())
	ws, _, err := websocket.DefaultDialer.Dial(wsUrl, header)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return app.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	res2, _ := app.do(http.MethodPost, "/api/weight", map[string]any{"userId": app.bob.ID, "date": "2024-07-26", "weight": 81.4}, cookie)
	require.Equal(t, http.StatusOK, res2.StatusCode)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Weight models.WeightEntry `json:"weight"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, broadcast.TypeWeightUpdated, decoded.Type)
	assert.Equal(t, app.bob.ID, decoded.Data.Weight.UserID)
	assert.Equal(t, 81.4, decoded.Data.Weight.WeightKg)
}
