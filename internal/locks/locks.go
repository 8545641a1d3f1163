package locks

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for lock expiry so tests can advance it directly.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the production clock.
var SystemClock Clock = ClockFunc(time.Now)

// JobLock serializes pipeline stages so overlapping triggers (cron firing
// while an HTTP trigger is mid-run) do not double-process the catalog.
// Acquire returns false without blocking when the lock is already held and
// not expired.
type JobLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

type memoryLock struct {
	clock Clock
	mu    sync.Mutex
	held  map[string]time.Time
}

// NewMemoryLock returns a process-local JobLock. A nil clock uses SystemClock.
func NewMemoryLock(clock Clock) JobLock {
	if clock == nil {
		clock = SystemClock
	}
	return &memoryLock{clock: clock, held: make(map[string]time.Time)}
}

func (l *memoryLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if expiry, ok := l.held[name]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *memoryLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}
