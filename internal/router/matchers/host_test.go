package matchers_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simman/hostguard/internal/router/matchers"
)

func TestParseHostPort(t *testing.T) {
	tests := []struct {
		in      string
		host    string
		port    int
		hasPort bool
	}{
		{"example.com", "example.com", 0, false},
		{"  Example.COM  ", "example.com", 0, false},
		{"example.com.", "example.com", 0, false},
		{"example.com:9000", "example.com", 9000, true},
		{"example.com.:9000", "example.com", 9000, true},
		{"example.com:", "example.com", matchers.InvalidPort, true},
		{"example.com:abc", "example.com", matchers.InvalidPort, true},
		{"example.com:80a", "example.com", matchers.InvalidPort, true},
		{"example.com:-1", "example.com", matchers.InvalidPort, true},
		{"example.com:99999999999999999999999", "example.com", matchers.InvalidPort, true},
		{"example.com:0", "example.com", 0, true},
		{".example.com", ".example.com", 0, false},
		{"", "", 0, false},
		{"*", "*", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, hasPort := matchers.ParseHostPort(tt.in)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.hasPort, hasPort)
		})
	}
}

func TestCompile(t *testing.T) {
	assert.Equal(t, matchers.HostMatcher{Host: "example.com"}, matchers.Compile("Example.com."))
	assert.Equal(t, matchers.HostMatcher{Suffix: true, Host: ".example.com"}, matchers.Compile(".example.com"))
	assert.Equal(t, matchers.HostMatcher{Host: "example.com", Port: 9000, HasPort: true}, matchers.Compile("example.com:9000"))
	assert.Equal(t, matchers.HostMatcher{Host: "example.com", Port: matchers.InvalidPort, HasPort: true}, matchers.Compile("example.com:x"))
	assert.Equal(t, matchers.HostMatcher{Host: "*"}, matchers.Compile("*"))
}

func TestHostMatcher_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		header  string
		want    bool
	}{
		{"exact", "example.com", "example.com", true},
		{"case insensitive header", "example.com", "Example.com", true},
		{"case insensitive pattern", "EXAMPLE.com", "example.COM", true},
		{"trailing dot header", "example.com", "example.com.", true},
		{"trailing dot pattern", "example.com.", "example.com", true},
		{"exact rejects subdomain", "example.com", "www.example.com", false},
		{"exact rejects other", "example.com", "example.net", false},
		{"exact with any header port", "example.com", "example.com:8080", true},
		{"suffix subdomain", ".example.com", "www.example.com", true},
		{"suffix deep subdomain", ".example.com", "a.b.example.com", true},
		{"suffix apex", ".example.com", "example.com", true},
		{"suffix apex trailing dot", ".example.com", "example.com.", true},
		{"suffix rejects lookalike", ".example.com", "notexample.com", false},
		{"suffix with header port", ".example.com", "www.example.com:443", true},
		{"port exact", "example.com:9000", "example.com:9000", true},
		{"port mismatch", "example.com:9000", "example.com:9001", false},
		{"port required", "example.com:9000", "example.com", false},
		{"suffix with port", ".example.com:9000", "api.example.com:9000", true},
		{"suffix with wrong port", ".example.com:9000", "api.example.com:80", false},
		{"malformed header port", "example.com", "example.com:abc", false},
		{"empty header port", "example.com", "example.com:", false},
		{"zero header port", "example.com", "example.com:0", false},
		{"malformed pattern port", "example.com:abc", "example.com:80", false},
		{"malformed pattern port no header port", "example.com:abc", "example.com", false},
		{"wildcard", "*", "anything.test", true},
		{"wildcard empty", "*", "", true},
		{"wildcard with port", "*", "anything.test:8080", true},
		{"wildcard malformed port", "*", "anything.test:abc", false},
		{"wildcard with pattern port", "*:8080", "anything.test:8080", true},
		{"dot matches all", ".", "whatever.test", true},
		{"empty header", "example.com", "", false},
		{"empty pattern", "", "example.com", false},
		{"whitespace", "example.com", "  example.com  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matchers.Compile(tt.pattern)
			assert.Equal(t, tt.want, m.Matches(tt.header))
			// pure: a second call gives the same answer
			assert.Equal(t, tt.want, m.Matches(tt.header))
		})
	}
}

func TestHostMatcher_Match(t *testing.T) {
	m := matchers.Compile(".example.org")

	req := httptest.NewRequest("GET", "http://sub.example.org/path", nil)
	assert.True(t, m.Match(req))

	req.Host = "example.net"
	assert.False(t, m.Match(req))
}

func TestHostMatcher_String(t *testing.T) {
	assert.Equal(t, "example.com", matchers.Compile("Example.COM.").String())
	assert.Equal(t, ".example.com:443", matchers.Compile(".example.com:443").String())
	assert.Equal(t, "example.com:?", matchers.Compile("example.com:x").String())
}
