// Package process derives cleaned jobs from raw postings.
package process

import (
	"regexp"
	"strings"
)

var (
	titleDisallowed = regexp.MustCompile(`[^a-z0-9 +#\-/]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	locationSep     = regexp.MustCompile(`[,|]`)
)

// NormalizeTitle lowercases t, replaces characters outside [a-z0-9 +#-/] with spaces
// and collapses whitespace.
func NormalizeTitle(t string) string {
	t = strings.ToLower(t)
	t = titleDisallowed.ReplaceAllString(t, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(t, " "))
}

// Location is a raw location split into its parts
type Location struct {
	City    string
	State   string
	Country string
}

// SplitLocation splits on ',' or '|' into city, state and country. Empty parts are skipped.
func SplitLocation(loc string) Location {
	var parts []string
	for _, p := range locationSep.Split(loc, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	var out Location
	if len(parts) > 0 {
		out.City = parts[0]
	}
	if len(parts) > 1 {
		out.State = parts[1]
	}
	if len(parts) > 2 {
		out.Country = parts[2]
	}
	return out
}
