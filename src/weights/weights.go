// Package weights parses weights the way people type them into the grid:
// "72,5" and "72.5" mean the same thing, and everything is kept to 0.1 kg.
package weights

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fridayweigh/weights/src/oops"
)

var ErrInvalidWeight = errors.New("invalid weight")

var reNumber = regexp.MustCompile(`^-?\d*\.?\d+$`)

// Round rounds to one decimal place, halves rounding up.
func Round(kg float64) float64 {
	return math.Floor(kg*10+0.5) / 10
}

func normalize(s string) string {
	return strings.Replace(strings.TrimSpace(s), ",", ".", 1)
}

// ParseInput reads a weight with either a comma or a dot as the decimal
// separator and rounds it to 0.1 kg. Zero and negative values parse fine;
// use IsValid to also require a positive weight.
func ParseInput(s string) (float64, error) {
	normalized := normalize(s)
	if normalized == "" || !reNumber.MatchString(normalized) {
		return 0, oops.New(ErrInvalidWeight, "%q is not a number", s)
	}
	kg, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, oops.New(ErrInvalidWeight, "%q is not a number", s)
	}
	return Round(kg), nil
}

// IsZeroInput reports whether s is an explicit zero, which the grid treats as
// a request to delete the entry.
func IsZeroInput(s string) bool {
	switch normalize(s) {
	case "0", "0.0":
		return true
	}
	return false
}

func IsValid(s string) bool {
	kg, err := ParseInput(s)
	return err == nil && kg > 0
}

// Kilograms decodes from either a JSON number or a string in any format
// ParseInput accepts, and is always rounded to 0.1 kg.
type Kilograms float64

func (k *Kilograms) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return oops.New(ErrInvalidWeight, "bad weight string")
		}
		kg, err := ParseInput(s)
		if err != nil {
			return err
		}
		*k = Kilograms(kg)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return oops.New(ErrInvalidWeight, "weight must be a number or a string")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return oops.New(ErrInvalidWeight, "weight must be finite")
	}
	*k = Kilograms(Round(f))
	return nil
}

func (k Kilograms) Float() float64 {
	return float64(k)
}
