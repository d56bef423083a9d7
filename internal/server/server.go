package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Server hosts the activity feed endpoints:
//
//	GET /ws       WebSocket event stream
//	GET /healthz  liveness probe
type Server struct {
	hub  *ActivityHub
	http *http.Server
}

// New builds a server on host:port around the given hub.
func New(hub *ActivityHub, host string, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start runs the hub loop and the HTTP listener. Blocks until the listener
// stops; http.ErrServerClosed after Shutdown is not returned as an error.
func (s *Server) Start() error {
	go s.hub.Run()

	log.Printf("activity: listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown stops the listener and disconnects all feed clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.Stop()
	return err
}
