package website

import (
	"errors"
	"net/http"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/oops"
)

type successResponse struct {
	Success bool `json:"success"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(c *RequestContext) ResponseData {
	var body loginRequest
	if err := c.ReadJSON(&body); err != nil {
		return c.TextResponse(http.StatusBadRequest, "Missing credentials")
	}
	if body.Username == "" || body.Password == "" {
		return c.TextResponse(http.StatusBadRequest, "Missing credentials")
	}

	token, err := c.Auth.Login(c, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialMismatch) {
			c.Logger.Info().Str("username", body.Username).Msg("failed login attempt")
			return c.TextResponse(http.StatusUnauthorized, "Invalid credentials")
		}
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to log in"))
	}

	res := c.JSONResponse(http.StatusOK, successResponse{Success: true})
	res.SetCookie(c.Auth.Sessions.Cookie(token))
	return res
}

func Logout(c *RequestContext) ResponseData {
	if token := auth.SessionFromRequest(c.Req); token != "" {
		c.Auth.Logout(token)
	}

	res := c.JSONResponse(http.StatusOK, successResponse{Success: true})
	res.SetCookie(auth.DeleteSessionCookie())
	return res
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func ChangePassword(c *RequestContext) ResponseData {
	var body changePasswordRequest
	if err := c.ReadJSON(&body); err != nil || body.NewPassword == "" {
		return c.TextResponse(http.StatusBadRequest, "Missing password")
	}

	err := c.Auth.ChangePassword(c, c.CurrentUser.ID, body.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordRequired) {
			return c.TextResponse(http.StatusBadRequest, "Missing password")
		}
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to change password"))
	}

	c.Logger.Info().Int("userId", c.CurrentUser.ID).Msg("password changed")
	return c.JSONResponse(http.StatusOK, successResponse{Success: true})
}
