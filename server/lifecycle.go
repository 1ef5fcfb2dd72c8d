package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// Start binds the listener and serves until Stop or a listener error.
// It blocks; callers run it on its own goroutine. When the requested
// port is taken, the next port is tried once before giving up.
func (s *Server) Start(port int) error {
	if !s.state.CompareAndSwap(int32(stateStopped), int32(stateRunning)) {
		return errors.New("server already running")
	}
	s.startedAt = time.Now()

	actualPort, err := findAvailablePort(port)
	if err != nil {
		s.state.Store(int32(stateStopped))
		return errors.Wrap(err, "find available port")
	}
	if actualPort != port {
		s.log.Infow("port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort)
	}

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", actualPort),
		Handler: s.routes(),
	}

	s.log.Infow("server ready",
		logger.FieldPath, fmt.Sprintf("http://localhost:%d", actualPort),
		"port", actualPort)

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.state.Store(int32(stateStopped))
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Stop drains the HTTP server, closes websocket clients, and waits a
// bounded time for the pump goroutines.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(stateRunning), int32(stateDraining)) {
		return nil
	}
	s.log.Infow("initiating server shutdown")

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warnw("http shutdown incomplete", logger.FieldError, err)
		}
	}

	// Close client connections before cancelling the context so the
	// read pumps unblock cleanly.
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
		delete(s.clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.log.Warnw("goroutine shutdown timed out")
	}

	s.state.Store(int32(stateStopped))
	s.log.Infow("server shutdown complete",
		"broadcast_drops", s.broadcastDrops.Load())
	return nil
}

// findAvailablePort probes the requested port and falls back once to
// the next one, matching the configured default/fallback pair.
func findAvailablePort(port int) (int, error) {
	for _, candidate := range []int{port, port + 1} {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", candidate))
		if err != nil {
			continue
		}
		ln.Close()
		return candidate, nil
	}
	return 0, errors.Newf("ports %d and %d both in use", port, port+1)
}

// DefaultPort resolves the port to serve on from configuration.
func DefaultPort(cfg config.ServerConfig) int {
	if cfg.Port != nil && *cfg.Port > 0 {
		return *cfg.Port
	}
	return config.DefaultServerPort
}
