package trackerdata

import (
	"context"
	"errors"
	"math"

	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/fridayweigh/weights/src/weights"
)

var ErrWeightOutOfRange = errors.New("weight must be a positive number")

const weightColumns = `w.id, w.user_id, w.date, w.weight_kg, u.name AS user_name, u.color AS user_color`

// FetchWeightEntries returns every entry joined with its user, ordered by
// date and then user name.
func FetchWeightEntries(ctx context.Context, dbConn db.ConnOrTx) ([]*models.WeightEntry, error) {
	entries, err := db.Query[models.WeightEntry](ctx, dbConn,
		`
		SELECT `+weightColumns+`
		FROM weights AS w
		JOIN users AS u ON w.user_id = u.id
		ORDER BY w.date, u.name
		`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch weights")
	}
	return entries, nil
}

func FetchWeightsByDate(ctx context.Context, dbConn db.ConnOrTx, date string) ([]*models.WeightEntry, error) {
	if _, err := weekdates.Parse(date); err != nil {
		return nil, err
	}
	entries, err := db.Query[models.WeightEntry](ctx, dbConn,
		`
		SELECT `+weightColumns+`
		FROM weights AS w
		JOIN users AS u ON w.user_id = u.id
		WHERE w.date = ?
		ORDER BY u.name
		`,
		date,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch weights for %s", date)
	}
	return entries, nil
}

// FetchDates returns every date with at least one entry, ascending.
func FetchDates(ctx context.Context, dbConn db.ConnOrTx) ([]string, error) {
	dates, err := db.QueryScalar[string](ctx, dbConn, `SELECT DISTINCT date FROM weights ORDER BY date`)
	if err != nil {
		return nil, oops.New(err, "failed to fetch dates")
	}
	return dates, nil
}

// Returns db.NotFound when there are no entries.
func FetchFirstDate(ctx context.Context, dbConn db.ConnOrTx) (string, error) {
	return fetchDateAggregate(ctx, dbConn, `SELECT MIN(date) FROM weights`)
}

// Returns db.NotFound when there are no entries.
func FetchLastDate(ctx context.Context, dbConn db.ConnOrTx) (string, error) {
	return fetchDateAggregate(ctx, dbConn, `SELECT MAX(date) FROM weights`)
}

func fetchDateAggregate(ctx context.Context, dbConn db.ConnOrTx, query string) (string, error) {
	date, err := db.QueryOneScalar[*string](ctx, dbConn, query)
	if err != nil {
		return "", oops.New(err, "failed to fetch date")
	}
	if date == nil {
		return "", db.NotFound
	}
	return *date, nil
}

// UpsertWeight records userID's weight on date, replacing any existing entry,
// and returns the stored row. The weight is rounded to 0.1 kg.
func UpsertWeight(ctx context.Context, dbConn db.ConnOrTx, userID int, date string, kg float64) (*models.WeightEntry, error) {
	if _, err := weekdates.Parse(date); err != nil {
		return nil, err
	}
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg <= 0 {
		return nil, ErrWeightOutOfRange
	}
	kg = weights.Round(kg)
	if kg <= 0 {
		return nil, ErrWeightOutOfRange
	}

	if _, err := FindUserByID(ctx, dbConn, userID); err != nil {
		return nil, err
	}

	entry, err := db.QueryOne[models.WeightEntry](ctx, dbConn,
		`
		INSERT INTO weights (user_id, date, weight_kg) VALUES (?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET weight_kg = excluded.weight_kg
		RETURNING id, user_id, date, weight_kg
		`,
		userID, date, kg,
	)
	if err != nil {
		return nil, oops.New(err, "failed to save weight for user %d on %s", userID, date)
	}
	return entry, nil
}

// FetchPreviousWeight returns the user's most recent entry strictly before
// date, or db.NotFound.
func FetchPreviousWeight(ctx context.Context, dbConn db.ConnOrTx, userID int, before string) (*models.WeightEntry, error) {
	if _, err := weekdates.Parse(before); err != nil {
		return nil, err
	}
	entry, err := db.QueryOne[models.WeightEntry](ctx, dbConn,
		`
		SELECT id, user_id, date, weight_kg
		FROM weights
		WHERE user_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1
		`,
		userID, before,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, db.NotFound
		}
		return nil, oops.New(err, "failed to fetch previous weight")
	}
	return entry, nil
}

// DeleteWeight removes an entry and reports whether there was one.
func DeleteWeight(ctx context.Context, dbConn db.ConnOrTx, userID int, date string) (bool, error) {
	if _, err := weekdates.Parse(date); err != nil {
		return false, err
	}
	n, err := db.Exec(ctx, dbConn, `DELETE FROM weights WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil {
		return false, oops.New(err, "failed to delete weight")
	}
	return n > 0, nil
}
