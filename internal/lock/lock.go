// Package lock serializes work on a single tenant across goroutines and, with redis, across
// processes.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"teambilling/internal/domain"
)

// Release gives the lock back. It is safe to call after the lock expired.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire takes the lock for key without waiting. A held lock yields domain.ErrLockNotAcquired.
	Acquire(ctx context.Context, key string) (Release, error)
}

// TenantKey is the lock key used for one tenant's lifecycle.
func TenantKey(tenantID int32) string {
	return fmt.Sprintf("tenant:%d", tenantID)
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewLocal(ttl time.Duration) *Local {
	return &Local{held: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (l *Local) Acquire(_ context.Context, key string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && (l.ttl <= 0 || now.Before(expires)) {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockNotAcquired)
	}
	expires := now.Add(l.ttl)
	l.held[key] = expires

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lock that expired and was taken by someone else is not ours to release
		if current, ok := l.held[key]; ok && current.Equal(expires) {
			delete(l.held, key)
		}
		return nil
	}, nil
}
