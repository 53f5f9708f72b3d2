// Package statussrv is a small optional, off-by-default cleartext
// HTTP/2 (h2c) debug listener serving Prometheus metrics and a
// current-status snapshot. It is never a dependency of channel-switch
// correctness — the controller façade starts it only when configured to
// (internal/config.Config.StatusServerEnabled).
package statussrv

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Status is the current-session snapshot served at /status.
type Status struct {
	ChannelNumber int     `json:"channel_number"`
	VolumePercent float64 `json:"volume_percent"`
	Muted         bool    `json:"muted"`
}

// StatusFunc returns the current Status at call time.
type StatusFunc func() Status

// Server is the h2c debug listener.
type Server struct {
	httpServer *http.Server
}

// New builds a Server bound to addr, serving registry's metrics at
// /metrics and statusFn's snapshot at /status. It uses
// golang.org/x/net/http2/h2c so the listener speaks HTTP/2 over
// cleartext TCP, matching an embedded diagnostics port with no TLS
// termination in front of it.
func New(addr string, registry *prometheus.Registry, statusFn StatusFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusFn()); err != nil {
			log.Printf("statussrv: encode status: %v", err)
		}
	})

	h2s := &http2.Server{}
	handler := h2c.NewHandler(logRequests(mux), h2s)

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: handler},
	}
}

// Start begins serving in a background goroutine and returns
// immediately. Serve errors other than http.ErrServerClosed are logged.
func (s *Server) Start() {
	go func() {
		log.Printf("statussrv: listening on %s (h2c)", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("statussrv: ListenAndServe: %v", err)
		}
	}()
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("statussrv: %s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
