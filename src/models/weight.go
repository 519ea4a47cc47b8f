package models

// A WeightEntry is one user's weight on one Friday.
type WeightEntry struct {
	ID       int     `db:"id" json:"id"`
	UserID   int     `db:"user_id" json:"user_id"`
	Date     string  `db:"date" json:"date"` // YYYY-MM-DD
	WeightKg float64 `db:"weight_kg" json:"weight_kg"`

	// Only filled in by queries that join users.
	UserName  string `db:"user_name" json:"user_name,omitempty"`
	UserColor string `db:"user_color" json:"user_color,omitempty"`
}
