package hostfilter_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simman/hostguard/internal/hostfilter"
	"github.com/simman/hostguard/internal/metrics"
	"github.com/simman/hostguard/internal/router/matchers"
)

type clientError struct {
	status  int
	message string
}

// recordingErrors captures rejections instead of rendering them.
type recordingErrors struct {
	mu    sync.Mutex
	calls []clientError
}

func (e *recordingErrors) OnClientError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	e.mu.Lock()
	e.calls = append(e.calls, clientError{status, message})
	e.mu.Unlock()
	w.WriteHeader(status)
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestNew_PreservesOrder(t *testing.T) {
	f := hostfilter.New([]string{"b.com", ".a.com", "c.com:81"}, nil)

	assert.Equal(t, []matchers.HostMatcher{
		matchers.Compile("b.com"),
		matchers.Compile(".a.com"),
		matchers.Compile("c.com:81"),
	}, f.Matchers())

	// returned slice is a copy
	ms := f.Matchers()
	ms[0] = matchers.Compile("evil.com")
	assert.Equal(t, matchers.Compile("b.com"), f.Matchers()[0])
}

func TestFilter_Allowed(t *testing.T) {
	f := hostfilter.New([]string{"example.com", ".example.org", "api.example.net:8443"}, nil)

	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"EXAMPLE.com.", true},
		{"example.com:8080", true},
		{"www.example.com", false},
		{"example.org", true},
		{"sub.example.org", true},
		{"notexample.org", false},
		{"api.example.net:8443", true},
		{"api.example.net", false},
		{"api.example.net:443", false},
		{"example.com:abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Allowed(tt.host))
		})
	}
}

func TestFilter_Wildcard(t *testing.T) {
	f := hostfilter.New([]string{"*"}, nil)
	assert.True(t, f.Allowed(""))
	assert.True(t, f.Allowed("anything.test"))
	assert.True(t, f.Allowed("anything.test:9000"))
}

func TestFilter_Check(t *testing.T) {
	f := hostfilter.New([]string{"example.com"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.com"
	assert.NoError(t, f.Check(req))

	req.Host = "evil.com"
	err := f.Check(req)
	require.Error(t, err)
	assert.True(t, hostfilter.IsHostNotAllowed(err))
	assert.Equal(t, "Host not allowed: evil.com", err.Error())

	wrapped := fmt.Errorf("pipeline: %w", err)
	he, ok := hostfilter.AsHostNotAllowed(wrapped)
	require.True(t, ok)
	assert.Equal(t, "evil.com", he.Host)

	_, ok = hostfilter.AsHostNotAllowed(errors.New("other"))
	assert.False(t, ok)
	assert.False(t, hostfilter.IsHostNotAllowed(nil))
}

func TestMiddleware_Forwards(t *testing.T) {
	errs := &recordingErrors{}
	f := hostfilter.New([]string{"example.com", ".example.org"}, errs)

	var called bool
	var seen *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = r
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("payload"))
	req.Host = "sub.example.org"
	rec := httptest.NewRecorder()

	f.Middleware(next).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Same(t, req, seen)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, errs.calls)

	body, err := io.ReadAll(seen.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestMiddleware_Rejects(t *testing.T) {
	errs := &recordingErrors{}
	f := hostfilter.New([]string{"example.com", ".example.org"}, errs)

	before := testutil.ToFloat64(metrics.HostFilterDecisions.WithLabelValues(metrics.OutcomeRejected))

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.net"
	rec := httptest.NewRecorder()

	f.Middleware(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, errs.calls, 1)
	assert.Equal(t, http.StatusBadRequest, errs.calls[0].status)
	assert.Contains(t, errs.calls[0].message, "example.net")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HostFilterDecisions.WithLabelValues(metrics.OutcomeRejected)))
}

// failingBody fails the test if the filter touches the body.
type failingBody struct{ t *testing.T }

func (b failingBody) Read([]byte) (int, error) {
	b.t.Error("request body must not be read")
	return 0, io.EOF
}

func (b failingBody) Close() error { return nil }

func TestMiddleware_RejectDoesNotReadBody(t *testing.T) {
	f := hostfilter.New([]string{"example.com"}, &recordingErrors{})

	var called bool
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Body = failingBody{t}
	req.Host = "evil.com"
	rec := httptest.NewRecorder()

	f.Middleware(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware_EmptyListRejectsAll(t *testing.T) {
	errs := &recordingErrors{}
	f := hostfilter.New(nil, errs)

	for _, host := range []string{"example.com", "localhost", "", "127.0.0.1:8080"} {
		var called bool
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()

		f.Middleware(okHandler(&called)).ServeHTTP(rec, req)

		assert.False(t, called, host)
		assert.Equal(t, http.StatusBadRequest, rec.Code, host)
	}
	assert.Len(t, errs.calls, 4)
}

func TestMiddleware_MissingHost(t *testing.T) {
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = ""

	rec := httptest.NewRecorder()
	hostfilter.New([]string{"example.com"}, &recordingErrors{}).Middleware(okHandler(&called)).ServeHTTP(rec, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	hostfilter.New([]string{"*"}, &recordingErrors{}).Middleware(okHandler(&called)).ServeHTTP(rec, req)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_DefaultPlainErrors(t *testing.T) {
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.net"
	rec := httptest.NewRecorder()

	hostfilter.New([]string{"example.com"}, nil).Middleware(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Host not allowed: example.net\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestMiddleware_Concurrent(t *testing.T) {
	f := hostfilter.New([]string{".example.org"}, &recordingErrors{})
	h := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			want := http.StatusNoContent
			req.Host = fmt.Sprintf("s%d.example.org", i)
			if i%2 == 1 {
				req.Host = fmt.Sprintf("s%d.example.net", i)
				want = http.StatusBadRequest
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, want, rec.Code)
		}(i)
	}
	wg.Wait()
}
