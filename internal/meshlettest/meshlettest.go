// Package meshlettest builds small meshlet containers for tests.
package meshlettest

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

func le32(vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func f32(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// Triangle returns a one-mesh container: three interleaved position+normal
// vertices spanning [-scale, scale], 16-bit indices, one meshlet.
func Triangle(scale float32) *meshlet.Container {
	b := meshlet.NewContainerBuilder()

	verts := b.AddBufferView(f32(
		-scale, 0, 0, 0, 0, 1,
		scale, 0, 0, 0, 0, 1,
		0, scale, 0, 0, 0, 1,
	))

	var h meshlet.MeshHeader
	for k := range h.Attributes {
		h.Attributes[k] = meshlet.None
	}
	h.Attributes[meshlet.AttributePosition] = meshlet.Some(b.AddAccessor(meshlet.Accessor{BufferView: verts, Size: 72, Stride: 24, Count: 3}))
	h.Attributes[meshlet.AttributeNormal] = meshlet.Some(b.AddAccessor(meshlet.Accessor{BufferView: verts, Offset: 12, Size: 60, Stride: 24, Count: 3}))

	// Three 16-bit indices; the payload keeps the view 4-byte aligned.
	h.Indices = b.AddAccessor(meshlet.Accessor{
		BufferView: b.AddBufferView([]byte{0, 0, 1, 0, 2, 0}),
		Size:       6, Stride: 2, Count: 3,
	})
	h.IndexSubsets = b.AddElements(le32(0, 3), 8, 1)
	h.Meshlets = b.AddElements(le32(3, 0, 1, 0), 16, 1)
	h.MeshletSubsets = b.AddElements(le32(0, 1), 8, 1)
	h.UniqueVertexIndices = b.AddAccessor(meshlet.Accessor{
		BufferView: b.AddBufferView([]byte{0, 0, 1, 0, 2, 0}),
		Size:       6, Stride: 2, Count: 3,
	})
	h.PrimitiveIndices = b.AddElements(le32(uint32(meshlet.PackTriangle(0, 1, 2))), 4, 1)
	h.CullData = b.AddElements(append(f32(0, 0, 0, scale), 0, 0, 127, 0, 0, 0, 0, 0), 24, 1)
	b.AddMesh(h)

	return b.Build()
}

// WriteTriangle writes Triangle(scale) to name under dir and returns the path.
func WriteTriangle(t testing.TB, dir, name string, scale float32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := meshlet.WriteContainerFile(path, Triangle(scale)); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
