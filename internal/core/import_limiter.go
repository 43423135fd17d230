package core

// import_limiter.go bounds the number of imports running at once.
//
// A buffered channel holds one token per running import. When every slot is
// taken a new import waits up to maxWait, then fails with ErrTooManyImports.
// Running imports are counted per kind so the status endpoint can show what
// is holding the slots, and shutdown can wait for the last one to finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all import slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many imports in progress")

// DefaultMaxConcurrentImports is the default limit for parallel imports.
const DefaultMaxConcurrentImports = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ImportLimiter controls concurrent import runs.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	running map[string]int // kind key → active runs
	active  int
	idle    chan struct{} // closed while active == 0
}

// NewImportLimiter creates a limiter that allows at most maxConcurrent
// simultaneous imports. Non-positive values fall back to the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		running: make(map[string]int),
		idle:    idle,
	}
}

// Acquire takes a slot for an import of kind. It returns ErrTooManyImports
// if none frees up within the wait time, or the context error if ctx ends
// first. The returned release func is safe to call more than once.
func (l *ImportLimiter) Acquire(ctx context.Context, kind string) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyImports
	}

	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.running[kind]++
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.release(kind) }) }, nil
}

func (l *ImportLimiter) release(kind string) {
	l.mu.Lock()
	l.active--
	if l.running[kind]--; l.running[kind] == 0 {
		delete(l.running, kind)
	}
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// WaitForDrain blocks until no import is running or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ImportLimiterStatus is a snapshot of the limiter's state.
type ImportLimiterStatus struct {
	Active        int            `json:"active"`
	Available     int            `json:"available"`
	MaxConcurrent int            `json:"maxConcurrent"`
	Running       map[string]int `json:"running,omitempty"`
}

// Status returns the current limiter state.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := ImportLimiterStatus{
		Active:        l.active,
		Available:     cap(l.slots) - l.active,
		MaxConcurrent: cap(l.slots),
	}
	if len(l.running) > 0 {
		status.Running = make(map[string]int, len(l.running))
		for k, n := range l.running {
			status.Running[k] = n
		}
	}
	return status
}
