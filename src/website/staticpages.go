package website

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/templates"
	"github.com/fridayweigh/weights/src/weburl"
)

// Index shows the login form to anonymous visitors and the built frontend to
// everyone else.
func Index(c *RequestContext) ResponseData {
	if c.CurrentUser == nil {
		var res ResponseData
		res.MustWriteTemplate("login.html", templates.LoginData{
			BaseData: templates.BaseData{
				Title:    "Weight Tracker - Login",
				LoginUrl: weburl.BuildApiLogin(),
			},
		})
		return res
	}

	contents, err := os.ReadFile(filepath.Join(c.DistDir, "index.html"))
	if err != nil {
		res := ResponseData{StatusCode: http.StatusNotFound}
		res.Header().Set("Content-Type", "text/html; charset=utf-8")
		if !errors.Is(err, fs.ErrNotExist) {
			res.Errors = append(res.Errors, oops.New(err, "failed to read index.html"))
		}
		return res
	}

	var res ResponseData
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.Write(contents)
	return res
}

func Asset(c *RequestContext) ResponseData {
	// Cleaning against a rooted path keeps requests inside dist/assets.
	rel := path.Clean("/" + c.PathParams["filepath"])
	fullPath := filepath.Join(c.DistDir, "assets", filepath.FromSlash(rel))

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FourOhFour(c)
		}
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to open asset"))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to stat asset"))
	}
	if info.IsDir() {
		return FourOhFour(c)
	}

	var res ResponseData
	http.ServeContent(&res, c.Req, info.Name(), info.ModTime(), f)
	return res
}
