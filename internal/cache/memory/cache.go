// Package memory provides an in-memory cache.Store implementation.
// This is suitable for single-node deployments where Redis is not
// available; the counters it holds are process-local.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store implements cache.Store using an in-process map.
type Store struct {
	mu      sync.Mutex
	items   map[string]*item
	stopCh  chan struct{}
	stopped bool
}

// item is a single stored entry.
type item struct {
	value     []byte
	counter   int64
	expiresAt time.Time
	noExpiry  bool
}

// isExpired checks if the item has expired.
func (i *item) isExpired() bool {
	if i.noExpiry {
		return false
	}
	return time.Now().After(i.expiresAt)
}

// NewStore creates a new in-memory store and starts its cleanup loop.
func NewStore() *Store {
	s := &Store{
		items:  make(map[string]*item),
		stopCh: make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// cleanupLoop periodically removes expired items.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired items.
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, it := range s.items {
		if it.isExpired() {
			delete(s.items, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		close(s.stopCh)
		s.stopped = true
	}
}

// Set stores a value with an optional TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	it := &item{value: valueCopy}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	} else {
		it.noExpiry = true
	}

	s.items[key] = it
	return nil
}

// Exists checks if a key exists and is not expired.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, exists := s.items[key]
	if !exists {
		return false, nil
	}

	return !it.isExpired(), nil
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Increment atomically increments the counter at key. The TTL is set
// when the counter is created and left untouched on later increments.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it, exists := s.items[key]; exists && !it.isExpired() {
		it.counter++
		return it.counter, nil
	}

	it := &item{counter: 1}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	} else {
		it.noExpiry = true
	}

	s.items[key] = it
	return 1, nil
}
