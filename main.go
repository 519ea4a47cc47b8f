package main

import (
	_ "github.com/fridayweigh/weights/src/admintools"
	_ "github.com/fridayweigh/weights/src/backup/cmd"
	_ "github.com/fridayweigh/weights/src/s3local/cmd"
	"github.com/fridayweigh/weights/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
