// Package web exposes a small HTTP surface over a broker.Broker: a
// server-sent-events stream of amp.MonitorEvent values for dashboards
// that would rather poll a URL than link against the amp module
// directly. Same http.Server+http.ServeMux+SSE shape as a SQL query
// dashboard's web server, with the EXPLAIN endpoint and embedded
// static UI dropped since they have no AMP analogue.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goamp/amp/amp"
	"github.com/goamp/amp/broker"
)

// Server serves the monitor event stream over HTTP.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
}

// New creates a Server backed by the given Broker.
func New(b *broker.Broker) *Server {
	s := &Server{broker: b}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type eventJSON struct {
	EngineID   string         `json:"engine_id"`
	At         string         `json:"at"`
	Tag        uint32         `json:"tag,omitempty"`
	Command    string         `json:"command,omitempty"`
	Direction  string         `json:"direction"`
	Fields     map[string]any `json:"fields,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
}

func eventToJSON(ev amp.MonitorEvent) eventJSON {
	out := eventJSON{
		EngineID:  ev.EngineID.String(),
		At:        ev.At.Format(time.RFC3339Nano),
		Tag:       ev.Tag,
		Command:   ev.Command,
		Direction: ev.Dir.String(),
		Fields:    ev.Fields,
		Error:     ev.Err,
	}
	if ev.Duration > 0 {
		out.DurationMs = float64(ev.Duration.Microseconds()) / 1000
	}
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // send headers immediately

	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			ev, ok := raw.(amp.MonitorEvent)
			if !ok {
				continue
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
