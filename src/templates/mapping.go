package templates

import (
	"strings"

	"github.com/fridayweigh/weights/src/models"
	"github.com/teacat/noire"
)

// Background tint for grid cells. Mixes the user color 80% towards white,
// roughly what a 20% opacity fill looks like on a white page.
const colorLightTint = 0.8

func ColorLight(hex string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(trimmed) != 6 {
		return hex
	}
	light := noire.NewHex(trimmed).Tint(colorLightTint)
	return "#" + strings.ToUpper(strings.TrimPrefix(light.Hex(), "#"))
}

func UserToTemplate(u *models.User) User {
	return User{
		ID:         u.ID,
		Name:       u.Name,
		Color:      u.Color,
		ColorLight: ColorLight(u.Color),
	}
}

func UsersToTemplate(users []*models.User) []User {
	result := make([]User, 0, len(users))
	for _, u := range users {
		result = append(result, UserToTemplate(u))
	}
	return result
}
