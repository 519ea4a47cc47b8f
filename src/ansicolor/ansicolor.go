package ansicolor

import (
	"os"

	"github.com/mattn/go-isatty"
)

// See this file for a good color reference:
// https://github.com/fatih/color/blob/master/color.go

var Reset = "\033[0m"
var Bold = "\033[1m"

var Red = "\033[31m"
var Blue = "\033[34m"
var Gray = "\033[37m"

var BgRed = "\033[41m"
var BgYellow = "\033[43m"
var BgBlue = "\033[44m"

func init() {
	if !isatty.IsTerminal(os.Stderr.Fd()) || os.Getenv("NO_COLOR") != "" {
		Disable()
	}
}

// Disable blanks every escape code, for log output that isn't going to a terminal.
func Disable() {
	Reset = ""
	Bold = ""
	Red = ""
	Blue = ""
	Gray = ""
	BgRed = ""
	BgYellow = ""
	BgBlue = ""
}
