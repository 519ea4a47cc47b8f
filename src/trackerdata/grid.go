package trackerdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/jmoiron/sqlx"
)

// Grid is everything the weight table shows: one row per user, one column
// per Friday.
type Grid struct {
	Users []*models.User
	// Keyed by GridKey(userID, date).
	Weights     map[string]*models.WeightEntry
	DateColumns []string
}

func GridKey(userID int, date string) string {
	return fmt.Sprintf("%d-%s", userID, date)
}

func FetchGrid(ctx context.Context, dbConn db.ConnOrTx, gen weekdates.Generator) (*Grid, error) {
	users, err := FetchUsers(ctx, dbConn)
	if err != nil {
		return nil, err
	}
	entries, err := FetchWeightEntries(ctx, dbConn)
	if err != nil {
		return nil, err
	}
	dates, err := FetchDates(ctx, dbConn)
	if err != nil {
		return nil, err
	}
	columns, err := gen.ColumnStrings(dates)
	if err != nil {
		return nil, oops.New(err, "stored dates are malformed")
	}

	grid := &Grid{
		Users:       users,
		Weights:     make(map[string]*models.WeightEntry, len(entries)),
		DateColumns: columns,
	}
	for _, entry := range entries {
		grid.Weights[GridKey(entry.UserID, entry.Date)] = entry
	}
	return grid, nil
}

func formatKg(kg float64) string {
	return strconv.FormatFloat(kg, 'f', -1, 64)
}

// WriteCSV writes one row per user with their weight in each date column.
// Missing weights are empty cells.
func (g *Grid) WriteCSV(w io.Writer) error {
	out := csv.NewWriter(w)

	header := append([]string{"Benutzer", "Farbe"}, g.DateColumns...)
	if err := out.Write(header); err != nil {
		return oops.New(err, "failed to write csv header")
	}
	for _, user := range g.Users {
		row := []string{user.Name, user.Color}
		for _, date := range g.DateColumns {
			cell := ""
			if entry, ok := g.Weights[GridKey(user.ID, date)]; ok {
				cell = formatKg(entry.WeightKg)
			}
			row = append(row, cell)
		}
		if err := out.Write(row); err != nil {
			return oops.New(err, "failed to write csv row")
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return oops.New(err, "failed to write csv")
	}
	return nil
}

type JSONExport struct {
	ExportDate  time.Time        `json:"exportDate"`
	DateColumns []string         `json:"dateColumns"`
	Users       []JSONExportUser `json:"users"`
}

type JSONExportUser struct {
	ID      int                `json:"id"`
	Name    string             `json:"name"`
	Color   string             `json:"color"`
	Weights map[string]float64 `json:"weights"`
}

func (g *Grid) JSONExport(now time.Time) JSONExport {
	export := JSONExport{
		ExportDate:  now.UTC(),
		DateColumns: g.DateColumns,
		Users:       make([]JSONExportUser, 0, len(g.Users)),
	}
	for _, user := range g.Users {
		u := JSONExportUser{
			ID:      user.ID,
			Name:    user.Name,
			Color:   user.Color,
			Weights: map[string]float64{},
		}
		for _, entry := range g.Weights {
			if entry.UserID == user.ID {
				u.Weights[entry.Date] = entry.WeightKg
			}
		}
		export.Users = append(export.Users, u)
	}
	return export
}

// SnapshotSQLite writes a consistent copy of the database to dest, which must
// not exist yet.
func SnapshotSQLite(ctx context.Context, conn *sqlx.DB, dest string) error {
	if !db.IsSQLite(conn) {
		return oops.New(nil, "snapshots are only supported for sqlite databases")
	}
	if _, err := conn.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return oops.New(err, "failed to snapshot database to %s", dest)
	}
	return nil
}
