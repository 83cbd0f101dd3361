package proxy

import (
	"regexp"
	"strings"
)

var (
	// schemeSlashes matches the double-slash right after a scheme, e.g.
	// "http://" or "https://", so it can be protected from slash
	// collapsing.
	schemeSlashes = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*:)/{2,}`)
	// multiSlash collapses runs of two or more slashes into one.
	multiSlash = regexp.MustCompile(`/{2,}`)
)

// urlJoin concatenates non-empty path segments with "/", collapsing
// repeated slashes to one, while leaving the query string of the final
// segment untouched (spec.md §4.1's urlJoin contract). It never
// reinterprets or reorders query parameters; it just doesn't run slash
// collapsing over them.
func urlJoin(segs ...string) string {
	var nonEmpty []string
	for _, s := range segs {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	// Split off the query string of the *last* segment only; earlier
	// segments are not inspected for "?" so an upstream target path
	// never has its own query string mistaken for the client's.
	last := len(nonEmpty) - 1
	query := ""
	if idx := strings.Index(nonEmpty[last], "?"); idx >= 0 {
		query = nonEmpty[last][idx:]
		nonEmpty[last] = nonEmpty[last][:idx]
	}

	path := strings.Join(nonEmpty, "/")

	// Protect "scheme://" from collapsing, then collapse the rest, then
	// restore the double slash.
	var prefix string
	if m := schemeSlashes.FindString(path); m != "" {
		prefix = m
		path = path[len(m):]
	}
	path = multiSlash.ReplaceAllString(path, "/")

	return prefix + path + query
}
