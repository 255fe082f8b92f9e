package forwarder

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"

	"github.com/simman/hostguard/internal/router"
)

// directKey names the client used when a route has no proxy.
const directKey = "direct"

// hopHeaders apply to a single connection and are not forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder forwards requests to upstreams, optionally through a proxy
type Forwarder struct {
	mu      sync.Mutex
	clients map[string]*http.Client // keyed by proxy URL
}

// NewForwarder creates a new forwarder
func NewForwarder() *Forwarder {
	return &Forwarder{
		clients: make(map[string]*http.Client),
	}
}

// Forward sends r to the route's upstream and copies the response to w.
// The original Host header is kept so upstreams can serve several vhosts.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, route router.Route) error {
	client, err := f.getClient(route.Proxy)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}

	targetURL := buildTargetURL(r, route)

	proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		return fmt.Errorf("failed to create proxy request: %w", err)
	}
	proxyReq.ContentLength = r.ContentLength

	copyHeaders(proxyReq.Header, r.Header)
	removeHopHeaders(proxyReq.Header)
	proxyReq.Host = r.Host
	setForwardedHeaders(proxyReq, r)

	start := time.Now()
	resp, err := client.Do(proxyReq)
	if err != nil {
		return fmt.Errorf("failed to forward request: %w", err)
	}
	defer resp.Body.Close()

	log.Ctx(r.Context()).Info().
		Str("method", r.Method).
		Str("host", r.Host).
		Str("path", r.URL.Path).
		Str("route", route.Name).
		Str("target", targetURL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request forwarded")

	removeHopHeaders(resp.Header)
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// headers are already sent, nothing left to report to the client
		log.Ctx(r.Context()).Debug().Err(err).Msg("failed to copy response body")
	}

	return nil
}

func buildTargetURL(r *http.Request, route router.Route) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, route.Upstream, r.URL.RequestURI())
}

func setForwardedHeaders(out, in *http.Request) {
	out.Header.Set("X-Forwarded-Host", in.Host)
	if in.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}

	if ip, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		out.Header.Set("X-Forwarded-For", ip)
	}
}

func (f *Forwarder) getClient(proxyURL string) (*http.Client, error) {
	key := proxyURL
	if key == "" {
		key = directKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, nil
	}

	client, err := createClient(proxyURL)
	if err != nil {
		return nil, err
	}

	f.clients[key] = client
	return client, nil
}

func createClient(proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn().Err(err).Msg("failed to configure HTTP/2 transport")
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// redirects go back to the client
			return http.ErrUseLastResponse
		},
	}, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// Close releases idle upstream connections.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, client := range f.clients {
		client.CloseIdleConnections()
	}
	return nil
}
