package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with an in-process map. Suitable for
// single-node deployments; locks do not survive restarts and are not
// shared between instances.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{
		locks: make(map[string]time.Time),
		stop:  make(chan struct{}),
	}
	go ml.cleanupLoop()
	return ml
}

// Stop terminates the cleanup goroutine.
func (m *MemoryLocker) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *MemoryLocker) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryLocker) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, expiresAt := range m.locks {
		if now.After(expiresAt) {
			delete(m.locks, key)
		}
	}
}

// Acquire attempts to take the lock.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiresAt, exists := m.locks[key]; exists && now.Before(expiresAt) {
		return false, nil
	}

	m.locks[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry retries acquisition with a fixed delay.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if err != nil || acquired {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Release releases the lock.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.locks[key]; !exists {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}
