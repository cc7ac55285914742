// Package ui holds terminal colours for log and CLI output.
package ui

import "fmt"

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m"
)

var MethodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

// Method pads an HTTP method to a fixed width and colours it.
func Method(method string) string {
	padded := fmt.Sprintf(" %-7s", method)
	if color, ok := MethodColors[method]; ok {
		return color + padded + ResetColor
	}
	return Gray + padded + ResetColor
}

// Status colours an HTTP status code by class.
func Status(status int) string {
	color := Green
	switch {
	case status == 0 || status >= 500:
		color = Red
	case status >= 400:
		color = Yellow
	case status >= 300:
		color = Cyan
	}
	return fmt.Sprintf("%s%d%s", color, status, ResetColor)
}
