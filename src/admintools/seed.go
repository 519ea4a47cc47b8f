package admintools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/models"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/weights"
	"github.com/jmoiron/sqlx"
)

type sampleUser struct {
	Name    string
	Color   string
	Weights []float64
}

var sampleDates = []string{"2024-06-28", "2024-07-05", "2024-07-12", "2024-07-19", "2024-07-26"}

var sampleUsers = []sampleUser{
	{"Alice", "#FF6B6B", []float64{70.5, 70.2, 69.8, 69.5, 69.1}},
	{"Bob", "#4ECDC4", []float64{82.3, 82.1, 81.9, 81.7, 81.4}},
	{"Charlie", "#45B7D1", []float64{75.0, 74.8, 74.6, 74.3, 74.0}},
	{"Diana", "#96CEB4", []float64{68.2, 68.0, 67.8, 67.5, 67.2}},
}

type SeedOptions struct {
	// Extra users with made-up names and weights.
	RandomUsers int
	Rand        *rand.Rand
}

// Seed inserts the sample users and their weights. Users are matched by
// name and existing weight entries are left alone, so seeding twice is
// harmless.
func Seed(ctx context.Context, conn *sqlx.DB, opts SeedOptions, out io.Writer) error {
	users := append([]sampleUser(nil), sampleUsers...)
	if opts.RandomUsers > 0 {
		rng := opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		users = append(users, randomUsers(rng, opts.RandomUsers)...)
	}

	return db.Tx(ctx, conn, func(tx *sqlx.Tx) error {
		for _, su := range users {
			user, created, err := findOrCreateUser(ctx, tx, su.Name, su.Color)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(out, "Created user %s (%s)\n", user.Name, user.Color)
			}

			inserted := 0
			for i, kg := range su.Weights {
				n, err := db.Exec(ctx, tx,
					`
					INSERT INTO weights (user_id, date, weight_kg) VALUES (?, ?, ?)
					ON CONFLICT (user_id, date) DO NOTHING
					`,
					user.ID, sampleDates[i], weights.Round(kg),
				)
				if err != nil {
					return oops.New(err, "failed to insert sample weight for %s", user.Name)
				}
				inserted += int(n)
			}
			if inserted > 0 {
				fmt.Fprintf(out, "  %d weights for %s\n", inserted, user.Name)
			}
		}

		fmt.Fprintln(out, "Sample data setup complete!")
		return nil
	})
}

func findOrCreateUser(ctx context.Context, conn db.ConnOrTx, name, color string) (*models.User, bool, error) {
	user, err := trackerdata.FindUserByName(ctx, conn, name)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, db.NotFound) {
		return nil, false, err
	}
	user, err = trackerdata.CreateUser(ctx, conn, name, color)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func randomUsers(rng *rand.Rand, n int) []sampleUser {
	seen := make(map[string]bool)
	for _, su := range sampleUsers {
		seen[strings.ToLower(su.Name)] = true
	}

	var result []sampleUser
	for len(result) < n {
		word := lorem.Word(4, 9)
		if word == "" {
			continue
		}
		if seen[strings.ToLower(word)] {
			word = fmt.Sprintf("%s%d", word, len(result)+1)
			if seen[strings.ToLower(word)] {
				continue
			}
		}
		seen[strings.ToLower(word)] = true

		kg := 55 + rng.Float64()*45
		series := make([]float64, len(sampleDates))
		for i := range series {
			series[i] = weights.Round(kg)
			kg += rng.Float64() - 0.6
		}

		result = append(result, sampleUser{
			Name:    strings.ToUpper(word[:1]) + word[1:],
			Color:   fmt.Sprintf("#%06X", rng.Intn(0x1000000)),
			Weights: series,
		})
	}
	return result
}
