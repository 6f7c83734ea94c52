package util

import (
	"os"
	"strings"
)

// ExpandUser replaces a leading ~/ with the user's home directory.
func ExpandUser(path string) string {
	if strings.HasPrefix(path, "~/") {
		path = strings.Replace(path, "~", os.Getenv("HOME"), 1)
	}
	return path
}
