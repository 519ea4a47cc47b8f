package website

import (
	"net/http"
)

func FourOhFour(c *RequestContext) ResponseData {
	return c.TextResponse(http.StatusNotFound, "Not Found")
}
