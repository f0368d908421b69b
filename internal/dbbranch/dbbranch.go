// Package dbbranch provisions a database per workspace branch: a Postgres
// database cloned from a template, or a copy of a SQLite file. A branch
// database that already exists (for example one created by a preview
// deployment) is reused rather than duplicated.
package dbbranch

import (
	"regexp"
	"strings"
)

var nonIdentRe = regexp.MustCompile(`[^a-z0-9]+`)

// Suffix turns a branch name into a database-safe suffix
func Suffix(branch string) string {
	s := nonIdentRe.ReplaceAllString(strings.ToLower(branch), "_")
	return strings.Trim(s, "_")
}
