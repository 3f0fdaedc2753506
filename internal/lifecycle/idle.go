package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// IdleTimer calls onIdle once no activity has been seen for the timeout.
type IdleTimer struct {
	timeout time.Duration
	onIdle  func()

	mu           sync.Mutex
	lastActivity time.Time
	timer        *time.Timer
	stopped      bool
}

// NewIdleTimer creates an idle timer. The timeout must be positive.
func NewIdleTimer(timeout time.Duration, onIdle func()) (*IdleTimer, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("idle timeout must be positive, got %v", timeout)
	}
	return &IdleTimer{timeout: timeout, onIdle: onIdle, lastActivity: time.Now()}, nil
}

// Run blocks until the timer fires or ctx is done.
func (t *IdleTimer) Run(ctx context.Context) {
	t.mu.Lock()
	t.timer = time.NewTimer(t.timeout)
	t.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return

		case <-t.timer.C:
			t.mu.Lock()
			if t.stopped {
				t.mu.Unlock()
				return
			}
			idle := time.Since(t.lastActivity)
			if idle < t.timeout {
				t.timer.Reset(t.timeout - idle)
				t.mu.Unlock()
				continue
			}
			t.stopped = true
			t.mu.Unlock()

			if t.onIdle != nil {
				t.onIdle()
			}
			return
		}
	}
}

// Touch records activity.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.lastActivity = time.Now()
	}
}

// Stop disarms the timer without calling onIdle.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// LastActivity returns the time of the last recorded activity.
func (t *IdleTimer) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}
