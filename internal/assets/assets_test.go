package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/internal/meshlettest"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

func TestManagerLoadCaches(t *testing.T) {
	path := meshlettest.WriteTriangle(t, t.TempDir(), "tri.bin", 1)

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	first, err := m.Load(path)
	require.NoError(t, err)
	second, err := m.Load(path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Len())

	hits, misses := m.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestManagerLoadSharesConcurrentReads(t *testing.T) {
	path := meshlettest.WriteTriangle(t, t.TempDir(), "tri.bin", 1)

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	const n = 16
	models := make([]*meshlet.Model, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			model, err := m.Load(path)
			assert.NoError(t, err)
			models[i] = model
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, models[0], models[i])
	}
	assert.Equal(t, 1, m.Len())
}

func TestManagerLoadError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte(strings.Repeat("not a model ", 4)), 0644))

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	_, err := m.Load(bad)
	assert.ErrorIs(t, err, meshlet.ErrFormat)
	assert.Zero(t, m.Len())

	_, err = m.Load(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}

func TestManagerPreload(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, name := range []string{"a.bin", "b.bin", "c.bin", "d.bin"} {
		paths = append(paths, meshlettest.WriteTriangle(t, dir, name, float32(i+1)))
	}

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	require.NoError(t, m.Preload(context.Background(), paths, 2))
	assert.Equal(t, 4, m.Len())

	model, err := m.Load(paths[3])
	require.NoError(t, err)
	assert.InDelta(t, 4, model.BoundingSphere.Radius, 1e-3)
}

func TestManagerPreloadError(t *testing.T) {
	dir := t.TempDir()
	good := meshlettest.WriteTriangle(t, dir, "good.bin", 1)

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	err := m.Preload(context.Background(), []string{good, filepath.Join(dir, "missing.bin")}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.bin")
}

func TestManagerEvict(t *testing.T) {
	path := meshlettest.WriteTriangle(t, t.TempDir(), "tri.bin", 1)

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	model, err := m.Load(path)
	require.NoError(t, err)

	require.NoError(t, m.Evict(path))
	assert.Equal(t, meshlet.StateReleased, model.State())
	assert.Zero(t, m.Len())
	require.NoError(t, m.Evict(path))

	reloaded, err := m.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, model, reloaded)
	assert.Equal(t, meshlet.StateLoaded, reloaded.State())
}

func TestManagerClose(t *testing.T) {
	dir := t.TempDir()
	a := meshlettest.WriteTriangle(t, dir, "a.bin", 1)
	b := meshlettest.WriteTriangle(t, dir, "b.bin", 2)

	m := NewManager(meshlet.LoadOptions{})
	ma, err := m.Load(a)
	require.NoError(t, err)
	mb, err := m.Load(b)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Equal(t, meshlet.StateReleased, ma.State())
	assert.Equal(t, meshlet.StateReleased, mb.State())

	_, err = m.Load(a)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, m.Close())
}

func TestCache(t *testing.T) {
	c := NewCache()
	model := &meshlet.Model{}

	_, ok := c.Get("x")
	assert.False(t, ok)
	c.Set("x", model)

	got, ok := c.Get("x")
	assert.True(t, ok)
	assert.Same(t, model, got)

	_, ok = c.Peek("x")
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	assert.Len(t, c.Clear(), 1)
	hits, misses = c.Stats()
	assert.Zero(t, hits+misses)
	assert.Zero(t, c.Len())
}

func TestKeyNormalizesPaths(t *testing.T) {
	path := meshlettest.WriteTriangle(t, t.TempDir(), "tri.bin", 1)
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, path)
	require.NoError(t, err)

	assert.Equal(t, Key(path), Key(rel))
	assert.Equal(t, Key(path), Key(filepath.Join(filepath.Dir(path), ".", "tri.bin")))

	m := NewManager(meshlet.LoadOptions{})
	defer m.Close()

	byAbs, err := m.Load(path)
	require.NoError(t, err)
	byRel, err := m.Load(rel)
	require.NoError(t, err)
	assert.Same(t, byAbs, byRel)

	require.NoError(t, m.Evict(rel))
	assert.Zero(t, m.Len())
	assert.Equal(t, meshlet.StateReleased, byAbs.State())
}
