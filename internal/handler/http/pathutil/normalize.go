// Package pathutil maps request paths to bounded metric and span labels.
package pathutil

import "strings"

// Unmatched is the label for any path outside the known route set.
const Unmatched = "/unmatched"

// knownPaths lists every path the API serves. Anything else collapses into
// Unmatched so scanners cannot blow up label cardinality.
var knownPaths = map[string]struct{}{
	"/notify/configs":        {},
	"/notify/configs/enable": {},
	"/notify/test":           {},
	"/notify/send":           {},
	"/notify/history":        {},
	"/notify/types":          {},
	"/notify/health":         {},
	"/health":                {},
	"/ready":                 {},
	"/live":                  {},
	"/metrics":               {},
}

// NormalizePath returns the label for path.
//
//	NormalizePath("/notify/history?page=2")  // "/notify/history"
//	NormalizePath("/notify/configs/")        // "/notify/configs"
//	NormalizePath("/wp-login.php")           // "/unmatched"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return Unmatched
}

// GetExpectedCardinality returns the number of distinct labels NormalizePath
// can produce.
func GetExpectedCardinality() int {
	return len(knownPaths) + 1
}
