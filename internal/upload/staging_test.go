package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshlod/internal/meshlettest"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

func loadTriangle(t *testing.T) *meshlet.Model {
	t.Helper()
	m, err := meshlet.NewModel(meshlettest.Triangle(1), meshlet.LoadOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { m.Release() })
	return m
}

func TestStagingUploadModel(t *testing.T) {
	m := loadTriangle(t)
	s := NewStaging()

	require.NoError(t, m.Upload(context.Background(), s))
	assert.Equal(t, meshlet.StateGPUResident, m.State())
	assert.Equal(t, 1, s.Uploads())

	st := s.Stats()
	assert.Equal(t, 7, st.Buffers)
	assert.Equal(t, uint64(6+72+16+24+8+4+256), st.Bytes)
	assert.Equal(t, uint64(8), st.ByUsage[meshlet.UsageUniqueVertexIndex])
	assert.Equal(t, uint64(meshlet.MeshInfoSize), st.ByUsage[meshlet.UsageMeshInfo])

	// The padded tail of the unique vertex indices is zero.
	h, ok := m.Meshes[0].GPUHandle(meshlet.BufferKey{Usage: meshlet.UsageUniqueVertexIndex})
	require.True(t, ok)
	b, ok := s.Buffer(h)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 0, 0, 0}, b.Data)
	assert.Equal(t, uint32(2), b.Stride)

	require.NoError(t, m.Release())
	assert.Equal(t, Stats{ByUsage: map[meshlet.Usage]uint64{}}, s.Stats())
}

func TestStagingCopiesData(t *testing.T) {
	s := NewStaging()
	src := []byte{1, 2, 3, 4}

	hs, err := s.Upload(context.Background(), 0, []meshlet.LogicalBuffer{{Size: 4, Data: src}})
	require.NoError(t, err)
	src[0] = 9

	b, ok := s.Buffer(hs[0])
	require.True(t, ok)
	assert.True(t, bytes.Equal([]byte{1, 2, 3, 4}, b.Data))
}

func TestStagingRejectsOversizedData(t *testing.T) {
	s := NewStaging()
	_, err := s.Upload(context.Background(), 0, []meshlet.LogicalBuffer{
		{Size: 4, Data: make([]byte, 4)},
		{Size: 2, Data: make([]byte, 3)},
	})
	require.Error(t, err)
	assert.Zero(t, s.Stats().Buffers)
}

func TestStagingBudget(t *testing.T) {
	s := NewStaging(WithBudget(300))
	m := loadTriangle(t)

	err := m.Upload(context.Background(), s)
	assert.ErrorIs(t, err, ErrBudget)
	assert.Equal(t, meshlet.StateLoaded, m.State())
	assert.Zero(t, s.Stats().Buffers)
}

func TestStagingRelease(t *testing.T) {
	s := NewStaging()
	hs, err := s.Upload(context.Background(), 0, []meshlet.LogicalBuffer{{Size: 16}})
	require.NoError(t, err)

	require.NoError(t, s.Release(hs[0]))
	assert.ErrorIs(t, s.Release(hs[0]), ErrUnknownHandle)
	assert.Zero(t, s.Stats().Bytes)
}

func TestStagingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaging().Upload(ctx, 0, []meshlet.LogicalBuffer{{Size: 4}})
	assert.ErrorIs(t, err, context.Canceled)
}
