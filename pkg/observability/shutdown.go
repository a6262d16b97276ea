package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownManager handles graceful shutdown of services
type ShutdownManager struct {
	logger          logrus.FieldLogger
	server          *http.Server
	shutdownFuncs   []namedShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdownFunc struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger logrus.FieldLogger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ShutdownManager{
		logger:          logger.WithField("component", "shutdown"),
		server:          server,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown.
// Functions run sequentially in registration order after the HTTP server stops.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, namedShutdownFunc{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT/SIGTERM, a server error or ctx cancellation, then shuts down
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context, serverErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var cause error
	select {
	case sig := <-sigChan:
		sm.logger.WithField("signal", sig.String()).Info("received signal, starting graceful shutdown")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sm.logger.WithError(err).Error("HTTP server failed, shutting down")
			cause = err
		}
	case <-ctx.Done():
		sm.logger.Info("context cancelled, starting graceful shutdown")
	}

	if err := sm.Shutdown(); err != nil {
		return err
	}
	return cause
}

// Shutdown stops the HTTP server and runs the registered functions within the timeout
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	var errs []error

	if sm.server != nil {
		sm.logger.Info("shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			errs = append(errs, fmt.Errorf("HTTP server shutdown failed: %w", err))
		}
	}

	sm.mu.Lock()
	funcs := append([]namedShutdownFunc(nil), sm.shutdownFuncs...)
	sm.mu.Unlock()

	for _, f := range funcs {
		if ctx.Err() != nil {
			sm.logger.Warn("shutdown timeout reached, skipping remaining functions")
			errs = append(errs, fmt.Errorf("shutdown timeout reached before %s", f.name))
			break
		}
		if err := f.fn(ctx); err != nil {
			sm.logger.WithError(err).WithField("func", f.name).Error("shutdown function failed")
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		sm.logger.WithField("func", f.name).Debug("shutdown function complete")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("graceful shutdown complete")
	return nil
}
