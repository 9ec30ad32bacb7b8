// Package server exposes a local address tree over HTTP: the JSON-RPC
// endpoint consumed by client.RemoteTree, a health probe and the
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banchi-geo/banchi/pkg/geocoder"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address in host:port form.
	Addr string

	// AuthToken protects the RPC endpoint when non-empty.
	AuthToken string

	// ReadTimeout and WriteTimeout bound each HTTP exchange. Zero
	// disables a limit; a zero WriteTimeout is the default because the
	// first reverse query may spend a long time building the spatial
	// index.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server holds the HTTP interface and the underlying address tree.
type Server struct {
	tree *geocoder.LocalTree

	httpServer *http.Server
	authToken  string
}

// NewServer builds the HTTP server around an opened tree. The tree
// must stay open for the server's lifetime; the caller closes it
// after Shutdown.
func NewServer(tree *geocoder.LocalTree, opts Options) *Server {
	s := &Server{
		tree:      tree,
		authToken: opts.AuthToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jsonrpc", s.handleRPC)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Chain middlewares: Recovery -> Logging -> Auth -> Mux.
	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	// The probe and the metrics scrape stay outside the chain: they
	// need no auth and would drown the request log.
	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      rootMux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Handler returns the root handler, wired for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts the HTTP server and blocks until Shutdown.
func (s *Server) Run() error {
	slog.Info("HTTP server listening",
		"addr", s.httpServer.Addr,
		"signature", s.tree.Signature(),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, waiting up to five seconds for
// in-flight requests. It does not close the tree; the caller owns it.
func (s *Server) Shutdown() {
	slog.Info("starting graceful shutdown of HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeHTTPError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
