package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitChange(t *testing.T, w *Watcher) []string {
	t.Helper()
	select {
	case batch := <-w.Changed():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	w, err := New([]string{path}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0644))

	assert.Equal(t, []string{path}, waitChange(t, w))
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	w, err := New([]string{path}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.bin"), []byte("x"), 0644))

	select {
	case batch := <-w.Changed():
		t.Fatalf("unexpected change: %v", batch)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherSeesReplacedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	w, err := New([]string{path}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	tmp := filepath.Join(dir, "model.bin.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Equal(t, []string{path}, waitChange(t, w))
}

func TestWatcherMissingDir(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "nope", "model.bin")}, 0)
	assert.Error(t, err)
}
