package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsHandshakeTimeout = 10 * time.Second

// The host filter has already vetted the request, origin checks are left to
// the upstream.
var upgrader = websocket.Upgrader{
	HandshakeTimeout: wsHandshakeTimeout,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsForwardHeaders are copied to the upstream handshake. The dialer sets the
// websocket handshake headers itself.
var wsForwardHeaders = []string{
	"Cookie",
	"Authorization",
	"User-Agent",
	"Origin",
	"Sec-WebSocket-Protocol",
	RequestIDHeader,
}

// handleWebSocket proxies a websocket session to the matching route
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	route, matched := s.router.Match(r)
	if !matched {
		s.handleNoMatch(w, r)
		return
	}

	logger := log.Ctx(r.Context()).With().
		Str("host", r.Host).
		Str("path", r.URL.Path).
		Str("route", route.Name).
		Logger()

	scheme := "wss"
	if r.TLS == nil {
		scheme = "ws"
	}
	backendURL := fmt.Sprintf("%s://%s%s", scheme, route.Upstream, r.URL.RequestURI())

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if route.Proxy != "" {
		proxyURL, err := url.Parse(route.Proxy)
		if err != nil {
			logger.Error().Err(err).Str("proxy", route.Proxy).Msg("invalid proxy URL")
			writeError(w, r, http.StatusBadGateway, "failed to connect to upstream")
			return
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	header := http.Header{}
	for _, name := range wsForwardHeaders {
		if v := r.Header.Values(name); len(v) > 0 {
			header[http.CanonicalHeaderKey(name)] = v
		}
	}
	header.Set("Host", r.Host)
	header.Set("X-Forwarded-Host", r.Host)

	// Dial first so a dead upstream still gets a proper HTTP error.
	backendConn, resp, err := dialer.DialContext(r.Context(), backendURL, header)
	if err != nil {
		ev := logger.Error().Err(err).Str("url", backendURL)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("failed to connect to upstream websocket")
		writeError(w, r, http.StatusBadGateway, "failed to connect to upstream")
		return
	}
	defer backendConn.Close()

	var respHeader http.Header
	if p := backendConn.Subprotocol(); p != "" {
		respHeader = http.Header{"Sec-Websocket-Protocol": {p}}
	}

	clientConn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Debug().Err(err).Msg("failed to upgrade client connection")
		return
	}
	defer clientConn.Close()

	logger.Info().Str("backend", backendURL).Msg("websocket connection established")

	errCh := make(chan error, 2)
	go func() { errCh <- copyWebSocket(backendConn, clientConn) }()
	go func() { errCh <- copyWebSocket(clientConn, backendConn) }()

	if err := <-errCh; err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug().Err(err).Msg("websocket copy error")
	}

	logger.Debug().Msg("websocket connection closed")
}

// copyWebSocket relays messages from src to dst until either side fails. A
// close frame from src is passed on to dst.
func copyWebSocket(dst, src *websocket.Conn) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				msg := websocket.FormatCloseMessage(ce.Code, ce.Text)
				_ = dst.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			return err
		}
	}
}
