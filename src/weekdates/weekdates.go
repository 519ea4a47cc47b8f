// Package weekdates computes the Friday-anchored date columns of the weight
// grid. All dates are calendar days, represented as time.Time at midnight UTC.
package weekdates

import (
	"errors"
	"time"

	"github.com/fridayweigh/weights/src/oops"
	"github.com/jonboulle/clockwork"
)

const Layout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Parse reads a strict YYYY-MM-DD calendar date.
func Parse(s string) (time.Time, error) {
	if len(s) != len(Layout) {
		return time.Time{}, oops.New(ErrInvalidDate, "%q is not a YYYY-MM-DD date", s)
	}
	d, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, oops.New(ErrInvalidDate, "%q is not a YYYY-MM-DD date", s)
	}
	return d, nil
}

func Format(d time.Time) string {
	return d.Format(Layout)
}

// Day truncates t to its calendar day in t's own location, returned as
// midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastFriday returns ref if it is a Friday, otherwise the most recent Friday
// before it.
//
// With Sunday=0 ... Saturday=6, Friday is 5, so the distance back to Friday is
// (weekday - 5) mod 7, which is (weekday + 2) mod 7 for non-negative values:
//
//	Sun 0 -> 2, Mon 1 -> 3, Tue 2 -> 4, Wed 3 -> 5, Thu 4 -> 6, Fri 5 -> 0, Sat 6 -> 1
func LastFriday(ref time.Time) time.Time {
	day := Day(ref)
	back := (int(day.Weekday()) + 2) % 7
	return day.AddDate(0, 0, -back)
}

// FridaysBetween returns every Friday in [start, end] in ascending order.
func FridaysBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	var fridays []time.Time
	if start.After(end) {
		return fridays
	}

	ahead := (int(time.Friday) - int(start.Weekday()) + 7) % 7
	for d := start.AddDate(0, 0, ahead); !d.After(end); d = d.AddDate(0, 0, 7) {
		fridays = append(fridays, d)
	}
	return fridays
}

type Generator struct {
	Clock clockwork.Clock
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
}

func (g Generator) Today() time.Time {
	clk := g.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	return Day(clk.Now().In(loc))
}

// Columns extends existing, which must be ascending and Friday-aligned, with
// every Friday after its last element up to and including the current Friday.
// With no existing dates the result is just the current Friday.
func (g Generator) Columns(existing []time.Time) []time.Time {
	current := LastFriday(g.Today())
	if len(existing) == 0 {
		return []time.Time{current}
	}

	columns := make([]time.Time, len(existing), len(existing)+4)
	copy(columns, existing)

	last := Day(existing[len(existing)-1])
	if last.Before(current) {
		columns = append(columns, FridaysBetween(last.AddDate(0, 0, 1), current)...)
	}
	return columns
}

// ColumnStrings is Columns for YYYY-MM-DD strings.
func (g Generator) ColumnStrings(existing []string) ([]string, error) {
	dates := make([]time.Time, 0, len(existing))
	for _, s := range existing {
		d, err := Parse(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}

	columns := g.Columns(dates)
	result := make([]string, len(columns))
	for i, d := range columns {
		result[i] = Format(d)
	}
	return result, nil
}
