package matchers

import (
	"net/http"
	"strings"
)

// PathPrefixMatcher matches requests whose path starts with Prefix on a
// segment boundary: "/api" matches "/api" and "/api/users" but not "/apiv2".
type PathPrefixMatcher struct {
	Prefix string
}

// Match checks the request path against the prefix
func (m PathPrefixMatcher) Match(req *http.Request) bool {
	return m.MatchPath(req.URL.Path)
}

// MatchPath checks a raw path against the prefix
func (m PathPrefixMatcher) MatchPath(path string) bool {
	prefix := strings.TrimSuffix(m.Prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
