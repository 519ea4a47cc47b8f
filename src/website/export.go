package website

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/weekdates"
)

func exportFilename(c *RequestContext, ext string) string {
	return fmt.Sprintf("weight-tracker-%s.%s", weekdates.Format(c.Dates.Today()), ext)
}

func setAttachment(res *ResponseData, filename string) {
	res.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}

func Export(c *RequestContext) ResponseData {
	switch c.PathParams["format"] {
	case "sqlite":
		return exportSQLite(c)
	case "csv":
		return exportCSV(c)
	case "json":
		return exportJSON(c)
	}
	return FourOhFour(c)
}

func exportSQLite(c *RequestContext) ResponseData {
	if !db.IsSQLite(c.Conn) {
		return c.TextResponse(http.StatusNotImplemented, "SQLite export is only available with the sqlite driver")
	}

	dir, err := os.MkdirTemp("", "weights-export-")
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to create export directory"))
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "export.db")
	c.Perf.StartBlock("SQL", "Snapshot database")
	err = trackerdata.SnapshotSQLite(c, c.Conn, snapshot)
	c.Perf.EndBlock()
	if err != nil {
		res := c.TextResponse(http.StatusInternalServerError, "Failed to export database")
		res.Errors = append(res.Errors, oops.New(err, "failed to snapshot database for export"))
		return res
	}
	contents, err := os.ReadFile(snapshot)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to read database snapshot"))
	}

	var res ResponseData
	res.Header().Set("Content-Type", "application/octet-stream")
	setAttachment(&res, exportFilename(c, "db"))
	res.Write(contents)
	return res
}

func exportCSV(c *RequestContext) ResponseData {
	c.Perf.StartBlock("SQL", "Fetch grid")
	grid, err := trackerdata.FetchGrid(c, c.Conn, c.Dates)
	c.Perf.EndBlock()
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch grid for export"))
	}

	var res ResponseData
	res.Header().Set("Content-Type", "text/csv; charset=utf-8")
	setAttachment(&res, exportFilename(c, "csv"))
	if err := grid.WriteCSV(&res); err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	return res
}

func exportJSON(c *RequestContext) ResponseData {
	c.Perf.StartBlock("SQL", "Fetch grid")
	grid, err := trackerdata.FetchGrid(c, c.Conn, c.Dates)
	c.Perf.EndBlock()
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch grid for export"))
	}

	var res ResponseData
	if err := res.WriteJson(grid.JSONExport(c.Now())); err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	setAttachment(&res, exportFilename(c, "json"))
	return res
}
