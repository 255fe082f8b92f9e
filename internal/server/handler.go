package server

import (
	"encoding/json"
	"net/http"

	"github.com/munnerz/goautoneg"
	"github.com/rs/zerolog/log"
)

// JSONErrors renders client errors as JSON, or as plain text when the
// client's Accept header ranks text/plain above application/json.
type JSONErrors struct{}

// OnClientError implements hostfilter.ErrorHandler.
func (JSONErrors) OnClientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeError(w, r, status, message)
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if prefersPlainText(r.Header.Get("Accept")) {
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	resp := errorResponse{
		Error:     message,
		Status:    status,
		RequestID: RequestIDFromContext(r.Context()),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to encode error response")
	}
}

func prefersPlainText(accept string) bool {
	var plainQ, jsonQ float64
	for _, a := range goautoneg.ParseAccept(accept) {
		switch {
		case a.Type == "text" && a.SubType == "plain":
			plainQ = max(plainQ, a.Q)
		case a.Type == "application" && a.SubType == "json":
			jsonQ = max(jsonQ, a.Q)
		}
	}
	return plainQ > 0 && plainQ > jsonQ
}

// handleHTTP forwards a regular request to the matching route
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	route, matched := s.router.Match(r)
	if !matched {
		s.handleNoMatch(w, r)
		return
	}

	if err := s.forwarder.Forward(w, r, route); err != nil {
		log.Ctx(r.Context()).Error().
			Err(err).
			Str("host", r.Host).
			Str("path", r.URL.Path).
			Str("route", route.Name).
			Msg("failed to forward request")
		writeError(w, r, http.StatusBadGateway, "failed to forward request")
	}
}

// handleNoMatch handles allowed requests that no route accepts
func (s *Server) handleNoMatch(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Warn().
		Str("host", r.Host).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg("no matching route found")

	writeError(w, r, http.StatusBadGateway, "no matching route found")
}
