// Package runtime provides graceful shutdown handling for the qichat process.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lin/qichat/internal/logging"
)

// ShutdownFunc is a cleanup function called during shutdown
type ShutdownFunc func(ctx context.Context) error

// DefaultShutdownTimeout bounds the total cleanup time
const DefaultShutdownTimeout = 10 * time.Second

// ShutdownManager runs registered cleanup handlers exactly once at process
// exit. Handlers run sequentially in reverse registration order (LIFO), so
// work layered on top of a resource is flushed before the resource itself
// closes. Shutdown blocks until every handler finished or the timeout
// expired: nothing here is fire-and-forget.
type ShutdownManager struct {
	mu          sync.Mutex
	handlers    []namedHandler
	timeout     time.Duration
	shutdownCtx context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	once        sync.Once
	log         *logging.Logger
}

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a shutdown manager with the given timeout.
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		timeout:     timeout,
		shutdownCtx: ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         logging.New("runtime"),
	}
}

// Register adds a cleanup handler. Handlers run in reverse order (LIFO).
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// Context returns a context that is cancelled when shutdown begins
func (m *ShutdownManager) Context() context.Context {
	return m.shutdownCtx
}

// Done returns a channel that's closed when shutdown is complete
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// ListenForSignals starts listening for SIGTERM/SIGINT. Non-blocking.
func (m *ShutdownManager) ListenForSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigChan
		m.log.Info("signal_received", map[string]any{"signal": sig.String()})
		m.Shutdown()
	}()
}

// Shutdown runs all handlers. Safe to call more than once; only the first
// call does the work, and every call blocks until cleanup finished.
func (m *ShutdownManager) Shutdown() {
	m.once.Do(m.performShutdown)
	<-m.done
}

func (m *ShutdownManager) performShutdown() {
	defer close(m.done)

	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		start := time.Now()

		if err := h.fn(ctx); err != nil {
			m.log.Error("shutdown_handler_failed", map[string]any{"handler": h.name}, err)
		} else {
			m.log.TimedEvent("shutdown_handler_done", start, map[string]any{"handler": h.name})
		}

		if ctx.Err() != nil {
			m.log.Warn("shutdown_timeout", map[string]any{"remaining": i}, ctx.Err())
			return
		}
	}
}
