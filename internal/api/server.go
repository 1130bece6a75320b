package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"kv-migrator/internal/logs"
)

// Server serves the admin endpoints while a migration runs.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *logs.Logger
}

// Listen binds addr and prepares the admin server. Serve must be called
// to start accepting requests.
func Listen(addr string, h *Handler, logger *logs.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	return &Server{
		srv: &http.Server{
			Handler:           RegisterRoutes(mux, h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown is called.
func (s *Server) Serve() {
	s.logger.Info("admin server started", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("admin server stopped", "error", err)
	}
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
