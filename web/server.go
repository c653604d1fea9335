// Package web serves the status endpoints of a running test environment:
// health, readiness, published endpoints and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/netresearch/testenv/core"
)

// Server is the status HTTP server.
type Server struct {
	srv    *http.Server
	env    Environment
	logger core.Logger
	ln     net.Listener
}

// EnvResponse lists the published endpoints. The token is never exposed.
type EnvResponse struct {
	Session  string            `json:"session"`
	Phase    string            `json:"phase"`
	Services map[string]string `json:"services"`
	Token    bool              `json:"token_acquired"`
}

// NewServer builds a server on addr. metrics is mounted on /metrics when
// not nil.
func NewServer(addr string, hc *HealthChecker, env Environment, metrics http.Handler, logger core.Logger) *Server {
	server := &Server{env: env, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", hc.LivenessHandler())
	mux.HandleFunc("GET /readyz", hc.ReadinessHandler())
	mux.HandleFunc("GET /health", hc.HealthHandler())
	mux.HandleFunc("GET /env", server.envHandler)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	var handler http.Handler = mux
	handler = securityHeaders(handler)
	handler = requestLog(logger, handler)

	server.srv = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return server
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Status server failed: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) envHandler(w http.ResponseWriter, _ *http.Request) {
	resp := EnvResponse{
		Session:  s.env.Session(),
		Phase:    s.env.Phase().String(),
		Services: map[string]string{},
	}

	reg := s.env.Registry()
	for _, kind := range []core.ServiceKind{core.ServicePostgres, core.ServiceRedis, core.ServiceKeycloak} {
		if uri, err := reg.ContainerURI(kind); err == nil {
			resp.Services[string(kind)] = uri
		}
	}
	if token, err := reg.Token(); err == nil && token != "" {
		resp.Token = true
	}

	code := http.StatusOK
	if s.env.Phase() != core.PhaseReady {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
