// Package assets loads meshlet models from disk and caches them by path.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("asset manager closed")

// Manager loads models and keeps them until evicted. Concurrent loads of the
// same path share one read.
type Manager struct {
	opts   meshlet.LoadOptions
	log    *zap.Logger
	cache  *Cache
	group  singleflight.Group
	mu     sync.RWMutex
	closed bool
}

// NewManager creates a new asset manager. opts is passed to every load.
func NewManager(opts meshlet.LoadOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		opts:  opts,
		log:   log.Named("assets"),
		cache: NewCache(),
	}
}

// Load returns the model at path, loading it on a cache miss.
func (m *Manager) Load(path string) (*meshlet.Model, error) {
	key := Key(path)

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	if model, ok := m.cache.Get(key); ok {
		return model, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if model, ok := m.cache.Peek(key); ok {
			return model, nil
		}

		model, err := meshlet.LoadModelFile(path, m.opts)
		if err != nil {
			return nil, err
		}

		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.closed {
			model.Release()
			return nil, ErrClosed
		}
		m.cache.Set(key, model)
		m.log.Debug("model cached", zap.String("path", key), zap.Int("bytes", model.BufferSize()))
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*meshlet.Model), nil
}

// Preload loads paths concurrently, at most limit at a time (GOMAXPROCS when
// limit <= 0). It returns the first error; models that loaded stay cached.
func (m *Manager) Preload(ctx context.Context, paths []string, limit int) error {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.Load(path); err != nil {
				return fmt.Errorf("preloading %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Evict drops path from the cache and releases its model. Evicting a path
// that is not cached is a no-op.
func (m *Manager) Evict(path string) error {
	model, ok := m.cache.Delete(Key(path))
	if !ok {
		return nil
	}
	return model.Release()
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Len returns the number of cached models.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close releases every cached model. Later loads fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	for _, model := range m.cache.Clear() {
		err = multierr.Append(err, model.Release())
	}
	return err
}

// Key returns the cache key for path: its absolute form, or the cleaned path
// when that cannot be determined.
func Key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Cache is an in-memory model cache.
type Cache struct {
	data map[string]*meshlet.Model
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*meshlet.Model),
	}
}

// Get retrieves an item from cache and counts the hit or miss.
func (c *Cache) Get(key string) (*meshlet.Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	model, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return model, ok
}

// Peek retrieves an item without touching the stats.
func (c *Cache) Peek(key string) (*meshlet.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	model, ok := c.data[key]
	return model, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, model *meshlet.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = model
}

// Delete removes key and returns what was stored there.
func (c *Cache) Delete(key string) (*meshlet.Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	model, ok := c.data[key]
	delete(c.data, key)
	return model, ok
}

// Clear empties the cache, resets the stats and returns the removed models.
func (c *Cache) Clear() []*meshlet.Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	models := make([]*meshlet.Model, 0, len(c.data))
	for _, model := range c.data {
		models = append(models, model)
	}
	c.data = make(map[string]*meshlet.Model)
	c.hits = 0
	c.misses = 0
	return models
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
