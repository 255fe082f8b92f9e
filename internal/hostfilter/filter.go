// Package hostfilter rejects requests whose Host header does not match a
// configured allow-list.
//
// Patterns are compiled once with matchers.Compile and shared read-only by
// every request, so a Filter is safe for concurrent use. An empty allow-list
// rejects everything.
//
//	f := hostfilter.New([]string{"example.com", ".example.org"}, errorHandler)
//	handler := f.Middleware(next)
package hostfilter

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/simman/hostguard/internal/metrics"
	"github.com/simman/hostguard/internal/router/matchers"
)

// ErrorHandler renders client errors. The filter decides that a request is
// rejected; how the response looks is up to the handler.
type ErrorHandler interface {
	OnClientError(w http.ResponseWriter, r *http.Request, status int, message string)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// OnClientError calls f.
func (f ErrorHandlerFunc) OnClientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	f(w, r, status, message)
}

// PlainErrors writes the message as text/plain via http.Error.
var PlainErrors = ErrorHandlerFunc(func(w http.ResponseWriter, _ *http.Request, status int, message string) {
	http.Error(w, message, status)
})

// Filter holds the compiled allow-list.
type Filter struct {
	matchers []matchers.HostMatcher
	onError  ErrorHandler
}

// New compiles allowed in order. A nil onError falls back to PlainErrors.
func New(allowed []string, onError ErrorHandler) *Filter {
	ms := make([]matchers.HostMatcher, 0, len(allowed))
	for _, pattern := range allowed {
		ms = append(ms, matchers.Compile(pattern))
	}

	if onError == nil {
		onError = PlainErrors
	}

	return &Filter{
		matchers: ms,
		onError:  onError,
	}
}

// Matchers returns a copy of the compiled rules in configuration order.
func (f *Filter) Matchers() []matchers.HostMatcher {
	out := make([]matchers.HostMatcher, len(f.matchers))
	copy(out, f.matchers)
	return out
}

// Allowed reports whether any rule accepts the raw Host header value.
func (f *Filter) Allowed(host string) bool {
	for _, m := range f.matchers {
		if m.Matches(host) {
			return true
		}
	}
	return false
}

// Check returns a *HostNotAllowedError when the request's Host is rejected.
// A missing Host header is treated as the empty string.
func (f *Filter) Check(r *http.Request) error {
	if f.Allowed(r.Host) {
		return nil
	}
	return &HostNotAllowedError{Host: r.Host}
}

// Middleware forwards allowed requests to next unchanged and hands rejected
// ones to the ErrorHandler with status 400. The request body is never read.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := f.Check(r)
		if err == nil {
			metrics.HostFilterDecisions.WithLabelValues(metrics.OutcomeAllowed).Inc()
			log.Ctx(r.Context()).Debug().Str("host", r.Host).Msg("host allowed")
			next.ServeHTTP(w, r)
			return
		}

		metrics.HostFilterDecisions.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Ctx(r.Context()).Warn().
			Str("host", r.Host).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Msg("host not allowed")

		f.onError.OnClientError(w, r, http.StatusBadRequest, err.Error())
	})
}
