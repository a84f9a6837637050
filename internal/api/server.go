package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

// Server serves the API until its context ends, then drains in-flight requests
// ⭐ SSOT: HTTP 서버 수명주기는 여기서만
type Server struct {
	srv   *http.Server
	log   *logger.Logger
	env   string
	drain time.Duration
}

// New builds the server from the HTTP section of the config
func New(cfg *config.Config, log *logger.Logger, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
		},
		log:   log,
		env:   cfg.Env,
		drain: cfg.HTTP.ShutdownTimeout,
	}
}

// ListenAndServe binds the configured port and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. When ctx ends, new connections are refused
// and running requests get up to the shutdown timeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"env":  s.env,
	}).Info("API server listening")

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case err := <-served:
		// Serve는 항상 non-nil 에러로 반환
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.WithField("timeout", s.drain).Info("Draining API server")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	s.log.Info("API server stopped")
	return nil
}
