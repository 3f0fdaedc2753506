// Package lifecycle handles process shutdown for the hiveauth binaries:
// interrupt signals, idle timeouts and bounded graceful shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Shutdown turns SIGINT/SIGTERM or an explicit Trigger into context cancellation.
type Shutdown struct {
	signals chan os.Signal
	trigger chan struct{}

	mu        sync.Mutex
	triggered bool
	stopped   bool
	reason    string
}

// NewShutdown creates a Shutdown that is not yet listening for signals.
func NewShutdown() *Shutdown {
	return &Shutdown{
		signals: make(chan os.Signal, 1),
		trigger: make(chan struct{}, 1),
	}
}

// Start begins listening for SIGTERM and SIGINT. The returned context is
// cancelled on the first signal, on Trigger, or when ctx is done.
func (s *Shutdown) Start(ctx context.Context) context.Context {
	signal.Notify(s.signals, syscall.SIGTERM, syscall.SIGINT)

	shutdownCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()
		select {
		case sig, ok := <-s.signals:
			if ok {
				s.record(fmt.Sprintf("received signal: %v", sig))
			}
		case <-s.trigger:
		case <-ctx.Done():
		}
	}()

	return shutdownCtx
}

// Trigger initiates shutdown with the given reason. Only the first reason is kept.
func (s *Shutdown) Trigger(reason string) {
	if !s.record(reason) {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Shutdown) record(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggered {
		return false
	}
	s.triggered = true
	s.reason = reason
	return true
}

// Triggered reports whether shutdown has been initiated.
func (s *Shutdown) Triggered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered
}

// Reason returns why shutdown was initiated.
func (s *Shutdown) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Stop stops listening for signals. It is safe to call more than once.
func (s *Shutdown) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	signal.Stop(s.signals)
	close(s.signals)
}

// Graceful runs shutdownFunc and gives up after timeout.
func Graceful(ctx context.Context, shutdownFunc func(context.Context) error, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- shutdownFunc(shutdownCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}
}
