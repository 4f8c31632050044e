// Package cache holds the in-process caches for computed statistics.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Managed is what the Manager needs from a registered cache.
type Managed interface {
	Name() string
	CleanExpired() int
	Purge()
}

// Manager expires entries periodically and invalidates every registered
// cache at once when the underlying data changes.
type Manager struct {
	mu     sync.Mutex
	caches []Managed
	logger *slog.Logger

	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(c Managed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// InvalidateAll purges every registered cache.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	caches := append([]Managed(nil), m.caches...)
	m.mu.Unlock()
	for _, c := range caches {
		c.Purge()
	}
	m.logger.Debug("Caches invalidated", "count", len(caches))
}

// StartCleanup begins periodic expiry of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			caches := append([]Managed(nil), m.caches...)
			m.mu.Unlock()
			for _, c := range caches {
				if n := c.CleanExpired(); n > 0 {
					m.logger.Debug("Expired cache entries removed", "cache", c.Name(), "removed", n)
				}
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
