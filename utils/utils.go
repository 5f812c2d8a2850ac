// Package utils provides small filesystem helpers.
package utils

import (
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
)

var unsafeRun = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// SafeName replaces every run of characters that are unsafe in a file name
// (path separators, whitespace, punctuation, control characters) with a
// single underscore.
func SafeName(s string) string {
	s = unsafeRun.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(s, "_")
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

