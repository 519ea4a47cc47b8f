package templates

type BaseData struct {
	Title string

	LoginUrl string
	HomeUrl  string
}

// User as handed to the frontend grid.
type User struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	ColorLight string `json:"colorLight"`
}

type LoginData struct {
	BaseData
}

type UnauthorizedData struct {
	BaseData
}
