package website

import (
	"errors"
	"net/http"

	"github.com/fridayweigh/weights/src/broadcast"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/templates"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/fridayweigh/weights/src/weights"
)

func Health(c *RequestContext) ResponseData {
	return c.JSONResponse(http.StatusOK, struct {
		Ok bool `json:"ok"`
	}{Ok: true})
}

type dataResponse struct {
	Users       []templates.User               `json:"users"`
	Weights     map[string]*models.WeightEntry `json:"weights"`
	DateColumns []string                       `json:"dateColumns"`
}

func Data(c *RequestContext) ResponseData {
	c.Perf.StartBlock("SQL", "Fetch grid")
	grid, err := trackerdata.FetchGrid(c, c.Conn, c.Dates)
	c.Perf.EndBlock()
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch grid"))
	}

	return c.JSONResponse(http.StatusOK, dataResponse{
		Users:       templates.UsersToTemplate(grid.Users),
		Weights:     grid.Weights,
		DateColumns: grid.DateColumns,
	})
}

type saveWeightRequest struct {
	UserID int                `json:"userId"`
	Date   string             `json:"date"`
	Weight *weights.Kilograms `json:"weight"`
}

type saveWeightResponse struct {
	Weight         *models.WeightEntry `json:"weight"`
	PreviousWeight *models.WeightEntry `json:"previousWeight"`
}

func SaveWeight(c *RequestContext) ResponseData {
	var body saveWeightRequest
	if err := c.ReadJSON(&body); err != nil {
		if errors.Is(err, weights.ErrInvalidWeight) {
			return c.TextResponse(http.StatusBadRequest, "Invalid weight")
		}
		return c.TextResponse(http.StatusBadRequest, "Missing required fields")
	}
	if body.UserID == 0 || body.Date == "" || body.Weight == nil {
		return c.TextResponse(http.StatusBadRequest, "Missing required fields")
	}

	entry, err := trackerdata.UpsertWeight(c, c.Conn, body.UserID, body.Date, body.Weight.Float())
	if err != nil {
		if res, handled := weightClientError(c, err); handled {
			return res
		}
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to save weight"))
	}

	previous, err := trackerdata.FetchPreviousWeight(c, c.Conn, body.UserID, body.Date)
	if err != nil && !errors.Is(err, db.NotFound) {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch previous weight"))
	}

	result := saveWeightResponse{
		Weight:         entry,
		PreviousWeight: previous,
	}

	if err := c.Hub.Broadcast(broadcast.Message{Type: broadcast.TypeWeightUpdated, Data: result}); err != nil {
		c.Logger.Warn().Err(err).Msg("failed to broadcast weight update")
	}

	return c.JSONResponse(http.StatusOK, result)
}

type deleteWeightRequest struct {
	UserID int    `json:"userId"`
	Date   string `json:"date"`
}

func DeleteWeight(c *RequestContext) ResponseData {
	var body deleteWeightRequest
	if err := c.ReadJSON(&body); err != nil || body.UserID == 0 || body.Date == "" {
		return c.TextResponse(http.StatusBadRequest, "Missing required fields")
	}

	deleted, err := trackerdata.DeleteWeight(c, c.Conn, body.UserID, body.Date)
	if err != nil {
		if res, handled := weightClientError(c, err); handled {
			return res
		}
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to delete weight"))
	}
	if !deleted {
		return c.TextResponse(http.StatusNotFound, "Weight not found")
	}

	if err := c.Hub.Broadcast(broadcast.Message{Type: broadcast.TypeWeightDeleted, Data: body}); err != nil {
		c.Logger.Warn().Err(err).Msg("failed to broadcast weight deletion")
	}

	return c.JSONResponse(http.StatusOK, successResponse{Success: true})
}

func weightClientError(c *RequestContext, err error) (ResponseData, bool) {
	switch {
	case errors.Is(err, weekdates.ErrInvalidDate):
		return c.TextResponse(http.StatusBadRequest, "Invalid date"), true
	case errors.Is(err, trackerdata.ErrWeightOutOfRange):
		return c.TextResponse(http.StatusBadRequest, "Invalid weight"), true
	case errors.Is(err, db.NotFound):
		return c.TextResponse(http.StatusNotFound, "User not found"), true
	}
	return ResponseData{}, false
}

func Websocket(c *RequestContext) ResponseData {
	if err := c.Hub.ServeWS(c.Res, c.Req); err != nil {
		c.Logger.Debug().Err(err).Msg("websocket closed with error")
	}
	return c.Hijacked()
}
