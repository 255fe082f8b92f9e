package matchers

import (
	"net/http"
	"strconv"
	"strings"
)

// InvalidPort marks a port segment that was present but empty or non-numeric.
// It never equals a real port, so a rule or header carrying it never matches.
const InvalidPort = -1

// HostMatcher is a compiled host pattern.
//
// Patterns are either literal ("example.com", "example.com:9000"), suffix
// patterns starting with a dot (".example.com" matches example.com and every
// subdomain) or "*" which matches any host.
type HostMatcher struct {
	Suffix  bool   // pattern started with "."
	Host    string // lower-cased, trailing dot stripped
	Port    int    // only meaningful when HasPort is set
	HasPort bool
}

// Compile turns a configured pattern into a HostMatcher. Any string is
// accepted; a malformed pattern simply never matches.
func Compile(pattern string) HostMatcher {
	host, port, hasPort := ParseHostPort(pattern)
	return HostMatcher{
		Suffix:  strings.HasPrefix(pattern, "."),
		Host:    host,
		Port:    port,
		HasPort: hasPort,
	}
}

// ParseHostPort splits s on the first colon into a normalized host and an
// optional port. Patterns and Host header values go through the same routine.
func ParseHostPort(s string) (host string, port int, hasPort bool) {
	host, rawPort, hasPort := strings.Cut(strings.TrimSpace(s), ":")
	if hasPort {
		port = parsePort(rawPort)
	}

	host = strings.ToLower(host)
	host = strings.TrimSuffix(host, ".")

	return host, port, hasPort
}

func parsePort(s string) int {
	if s == "" {
		return InvalidPort
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return InvalidPort
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// out of int range
		return InvalidPort
	}
	return n
}

// Matches reports whether a raw Host header value satisfies the rule.
func (m HostMatcher) Matches(hostHeader string) bool {
	headerHost, headerPort, headerHasPort := ParseHostPort(hostHeader)

	hostMatches := m.Host == "*"
	if !hostMatches {
		if m.Suffix {
			hostMatches = strings.HasSuffix("."+headerHost, m.Host)
		} else {
			hostMatches = headerHost == m.Host
		}
	}

	// A port present in the header must be a real one, and a pattern with a
	// port only accepts exactly that port.
	portMatches := (!headerHasPort || headerPort > 0) &&
		(!m.HasPort || (headerHasPort && m.Port == headerPort))

	return hostMatches && portMatches
}

// Match checks the request's Host header, so a HostMatcher can be used as a
// routing rule.
func (m HostMatcher) Match(req *http.Request) bool {
	return m.Matches(req.Host)
}

// String renders the normalized rule.
func (m HostMatcher) String() string {
	if !m.HasPort {
		return m.Host
	}
	if m.Port == InvalidPort {
		return m.Host + ":?"
	}
	return m.Host + ":" + strconv.Itoa(m.Port)
}
