package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered shutdown functions, last registered first, once
// the process is asked to stop.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger
	funcs   []shutdownFunc
	mu      sync.Mutex
}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
		funcs:   make([]shutdownFunc, 0),
	}
}

func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, shutdownFunc{name: name, fn: fn})
}

// Wait blocks until ctx is done and then shuts everything down. Each function
// gets its own timeout; a failing one does not stop the rest.
func (m *Manager) Wait(ctx context.Context) {
	<-ctx.Done()
	m.logger.Info("received shutdown signal, starting graceful shutdown")
	m.Shutdown()
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	funcs := make([]shutdownFunc, len(m.funcs))
	copy(funcs, m.funcs)
	m.funcs = m.funcs[:0]
	m.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		fn := funcs[i]

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := fn.fn(ctx)
		cancel()

		duration := time.Since(start)
		if err != nil {
			m.logger.Error("shutdown function failed",
				zap.String("name", fn.name),
				zap.Error(err),
				zap.Duration("duration", duration))
		} else {
			m.logger.Info("shutdown function completed",
				zap.String("name", fn.name),
				zap.Duration("duration", duration))
		}
	}

	m.logger.Info("graceful shutdown completed")
}

// ShutdownHTTPServer adapts an http.Server.
func ShutdownHTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

// Closer adapts anything with Close() error, such as *sql.DB, a redis client
// or a kafka writer.
func Closer(c interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return c.Close()
	}
}

// WaitDone waits for a background loop to report that it has stopped.
func WaitDone(done <-chan struct{}) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
