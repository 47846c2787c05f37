package httpapi

import (
	"context"
	"net/http"

	"github.com/veritas-ledger/gateway/internal/config"
	"github.com/veritas-ledger/gateway/internal/logging"
)

// Server wraps the HTTP listener with graceful shutdown.
type Server struct {
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds the listener around the assembled handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, log *logging.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.log.WithField("address", s.httpServer.Addr).Info("gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
