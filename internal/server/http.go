package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsonwriter "github.com/dgellow/line-relay/internal/json"
	"github.com/dgellow/line-relay/internal/log"
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server  *http.Server
	service string
}

// NewHTTPServer creates a new HTTP server for service with the given handler and address
func NewHTTPServer(service string, handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service: service,
	}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	service string
}

// NewHealthHandler creates a new health handler for service
func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, healthResponse{Status: "ok", Service: h.service})
}

// Handler returns the root handler, for in-process tests
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start starts the HTTP server and blocks until it stops
func (h *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "Listening", map[string]any{
		"service": h.service,
		"addr":    h.server.Addr,
	})

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"service": h.service,
		"addr":    h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"service": h.service,
	})
	return nil
}
