package website

import (
	"errors"
	"net/http"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/perf"
	"github.com/fridayweigh/weights/src/templates"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/weburl"
	"github.com/google/uuid"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(error)
				var err error
				if ok {
					err = oops.New(maybeError, "recovered from panic")
				} else {
					err = oops.New(nil, "Recovered from panic with value: %v", recovered)
				}
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()

		return h(c)
	}
}

// Tags the request with an id and a sub-logger, then logs how it went.
func trackRequest(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.Perf = perf.NewRequestPerf(c.Route, c.Req.Method)
		c.RequestID = uuid.NewString()
		logger := logging.With().
			Str("requestId", c.RequestID).
			Str("method", c.Req.Method).
			Str("route", c.Route).
			Logger()
		c.Logger = &logger
		c.ctx = logging.AttachLoggerToContext(c.Logger, c.ctx)

		res := h(c)
		c.Perf.EndRequest()

		if !res.hijacked {
			res.Header().Set("X-Request-Id", c.RequestID)
		}
		status := res.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		c.Logger.Debug().
			Str("path", c.Req.URL.Path).
			Int("status", status).
			Dur("duration", c.Perf.Duration()).
			Array("perf", c.Perf).
			Msg("Served request")
		return res
	}
}

// Attaches the app's collaborators and the current user, if the session
// cookie names a live session.
func loadCommonData(deps Deps) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			c.Conn = deps.Conn
			c.Auth = deps.Auth
			c.Hub = deps.Hub
			c.Dates = deps.Dates
			c.Clock = deps.Clock
			c.DistDir = deps.DistDir

			if token := auth.SessionFromRequest(c.Req); token != "" {
				if err := loadCurrentUser(c, token); err != nil {
					return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to get current user"))
				}
			}

			return h(c)
		}
	}
}

// Only returns an error if it's serious. An unknown or expired session just
// leaves the request anonymous.
func loadCurrentUser(c *RequestContext, token string) error {
	userID, err := c.Auth.UserIDForSession(token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	user, err := trackerdata.FindUserByID(c, c.Conn, userID)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			c.Logger.Debug().Int("userId", userID).Msg("dropping session for a user that no longer exists")
			c.Auth.Logout(token)
			return nil
		}
		return err
	}

	c.CurrentUser = user
	c.SessionToken = token
	return nil
}

func needsApiAuth(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.CurrentUser == nil {
			return c.TextResponse(http.StatusUnauthorized, "Unauthorized")
		}

		return h(c)
	}
}

func needsPageAuth(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.CurrentUser == nil {
			return UnauthorizedPage(c)
		}

		return h(c)
	}
}

func UnauthorizedPage(c *RequestContext) ResponseData {
	res := ResponseData{StatusCode: http.StatusUnauthorized}
	res.MustWriteTemplate("unauthorized.html", templates.UnauthorizedData{
		BaseData: templates.BaseData{
			Title:   "Unauthorized",
			HomeUrl: weburl.BuildHomepage(),
		},
	})
	return res
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
